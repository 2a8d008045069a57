package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"wms/frontend/shared/html"
)

func AuditPage(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<h1>Audit log &middot; %s</h1>`, templ.EscapeString(data.WarehouseCode)); err != nil {
			return err
		}
		if err := html.Flash("", data.ErrorMessage).Render(ctx, w); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, `<form method="GET" action="/tasker/audit" class="filters">`+
			`<input name="action" placeholder="action" value="%s">`+
			`<input name="entityType" placeholder="entity type" value="%s">`+
			`<input name="entityId" placeholder="entity id" value="%s">`+
			`<input type="date" name="date" value="%s">`+
			`<button type="submit">Filter</button></form>`,
			templ.EscapeString(data.Action), templ.EscapeString(data.EntityType),
			templ.EscapeString(data.EntityID), templ.EscapeString(data.Date))
		if err != nil {
			return err
		}
		if len(data.Rows) == 0 {
			_, err := io.WriteString(w, `<p>No events.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table class="audit"><thead><tr><th>When</th><th>Actor</th><th>Action</th><th>Entity</th><th>Summary</th><th>Details</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, ev := range data.Rows {
			meta := ""
			if len(ev.Meta) > 0 {
				if b, err := json.Marshal(ev.Meta); err == nil {
					meta = string(b)
				}
			}
			_, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s (%s)</td><td>%s</td><td>%s %s</td><td>%s</td><td><code>%s</code></td></tr>`,
				ev.CreatedAt.Format("02/01/2006 15:04"),
				templ.EscapeString(defaultActor(ev.ActorName)), templ.EscapeString(ev.ActorRole),
				templ.EscapeString(ev.Action),
				templ.EscapeString(ev.EntityType), templ.EscapeString(ev.EntityID),
				templ.EscapeString(ev.Summary), templ.EscapeString(meta))
			if err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, `</tbody></table>`)
		return err
	})
}

func defaultActor(actor string) string {
	if actor == "" {
		return "-"
	}
	return actor
}
