package html

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const csrfScript = `<script>
(function () {
  function csrfToken() {
    var parts = document.cookie ? document.cookie.split(";") : [];
    for (var i = 0; i < parts.length; i++) {
      var kv = parts[i].trim().split("=");
      if (kv[0] === "X-CSRF-Token") return decodeURIComponent(kv.slice(1).join("="));
    }
    return "";
  }

  document.addEventListener("submit", function (ev) {
    var form = ev.target;
    if ((form.getAttribute("method") || "GET").toUpperCase() !== "POST") return;
    var question = form.getAttribute("data-confirm");
    if (question && !window.confirm(question)) {
      ev.preventDefault();
      return;
    }
    var field = form.querySelector("input[name='_csrf']");
    if (!field) {
      field = document.createElement("input");
      field.type = "hidden";
      field.name = "_csrf";
      form.appendChild(field);
    }
    field.value = csrfToken();
  }, true);
})();
</script>`

// CSRFScript fills the _csrf field of every POST form at submit time and
// asks for confirmation on forms carrying data-confirm.
func CSRFScript() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, csrfScript)
		return err
	})
}
