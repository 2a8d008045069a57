package login

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"wms/frontend/shared/html"
)

func GetLoginScreen(username, errorMessage string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>Sign in</title><link rel="stylesheet" href="/assets/app.css"></head><body class="login"><main><h1>Warehouse sign in</h1>`); err != nil {
			return err
		}
		if err := html.Flash("", errorMessage).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<form method="POST" action="/login">`+
			`<label>Username <input name="username" value="%s" autocomplete="username" required autofocus></label>`+
			`<label>Password <input type="password" name="password" autocomplete="current-password" required></label>`+
			`<button type="submit">Sign in</button></form></main>`, templ.EscapeString(username)); err != nil {
			return err
		}
		if err := html.CSRFScript().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
