package adminusers

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"wms/frontend/shared/html"
)

func UsersListPage(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h1>Users</h1>`); err != nil {
			return err
		}
		if err := html.Flash(data.Status, data.ErrorMessage).Render(ctx, w); err != nil {
			return err
		}
		if err := createUserForm(data).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<table><thead><tr><th>ID</th><th>Username</th><th>Name</th><th>Role</th><th>Warehouse</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, u := range data.Users {
			_, err := fmt.Fprintf(w, `<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>`,
				u.ID, templ.EscapeString(u.Username), templ.EscapeString(u.DisplayName), templ.EscapeString(u.Role))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, `<form method="POST" action="/tasker/admin/users/warehouse"><input type="hidden" name="user_id" value="%d">`, u.ID); err != nil {
				return err
			}
			if err := warehouseSelect(data.Warehouses, u.WarehouseID).Render(ctx, w); err != nil {
				return err
			}
			if _, err := io.WriteString(w, `<button type="submit">Save</button></form></td></tr>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

func createUserForm(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<form method="POST" action="/tasker/admin/users" class="create-user">
<input name="username" placeholder="Username" required>
<input name="display_name" placeholder="Display name">
<input name="password" type="password" placeholder="Password" required>
<select name="role">`); err != nil {
			return err
		}
		for _, role := range data.Roles {
			if _, err := fmt.Fprintf(w, `<option value="%[1]s">%[1]s</option>`, templ.EscapeString(role)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</select>`); err != nil {
			return err
		}
		if err := warehouseSelect(data.Warehouses, nil).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<button type="submit">Create user</button></form>`)
		return err
	})
}

func warehouseSelect(options []WarehouseOption, selected *int64) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<select name="warehouse_id"><option value="">(none)</option>`); err != nil {
			return err
		}
		for _, o := range options {
			attr := ""
			if selected != nil && *selected == o.ID {
				attr = " selected"
			}
			if _, err := fmt.Fprintf(w, `<option value="%d"%s>%s</option>`, o.ID, attr, templ.EscapeString(o.Label)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</select>`)
		return err
	})
}
