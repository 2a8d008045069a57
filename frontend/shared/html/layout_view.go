package html

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"wms/frontend/shared/nav"
)

// Page wraps body in the admin layout with the top navigation.
func Page(title string, top nav.TopNavData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>%s</title><link rel=\"stylesheet\" href=\"/assets/app.css\"></head><body>", templ.EscapeString(title)); err != nil {
			return err
		}
		if err := topNav(top).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "<main>"); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</main>"); err != nil {
			return err
		}
		if err := CSRFScript().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

func topNav(top nav.TopNavData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<nav class="topnav">`); err != nil {
			return err
		}
		for _, link := range top.Links {
			class := ""
			if link.Active {
				class = ` class="active"`
			}
			if _, err := fmt.Fprintf(w, `<a href="%s"%s>%s</a>`, templ.EscapeString(link.Href), class, templ.EscapeString(link.Label)); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, `<span class="who">%s (%s) &middot; %s</span><form method="POST" action="/logout"><button type="submit">Log out</button></form>`+
			`<form method="POST" action="/logout" data-confirm="Sign out on every device?"><input type="hidden" name="scope" value="all"><button type="submit">Everywhere</button></form></nav>`,
			templ.EscapeString(top.Username), templ.EscapeString(top.Role), templ.EscapeString(top.WarehouseCode))
		return err
	})
}

// Flash renders status and error query messages.
func Flash(status, errorMessage string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if status != "" {
			if _, err := fmt.Fprintf(w, `<p class="flash ok">%s</p>`, templ.EscapeString(status)); err != nil {
				return err
			}
		}
		if errorMessage != "" {
			if _, err := fmt.Fprintf(w, `<p class="flash error">%s</p>`, templ.EscapeString(errorMessage)); err != nil {
				return err
			}
		}
		return nil
	})
}
