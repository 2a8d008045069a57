package pickingtasks

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"wms/frontend/shared/html"
	"wms/infrastructure/pickingtask"
)

var boardFilters = []string{"", pickingtask.StatusOpen, pickingtask.StatusInProgress, pickingtask.StatusDone, pickingtask.StatusCanceled}

func BoardPage(data BoardPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<h1>Picking tasks &middot; %s</h1>`, templ.EscapeString(data.WarehouseCode)); err != nil {
			return err
		}
		if err := html.Flash(data.Status, data.ErrorMessage).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<p class="filters">`); err != nil {
			return err
		}
		for _, f := range boardFilters {
			label := f
			if label == "" {
				label = "all"
			}
			class := ""
			if f == data.StatusFilter {
				class = ` class="active"`
			}
			if _, err := fmt.Fprintf(w, `<a href="/tasker/picking-tasks?filter=%s"%s>%s</a> `, templ.EscapeString(f), class, templ.EscapeString(label)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</p>`); err != nil {
			return err
		}

		if len(data.Tasks) == 0 {
			_, err := io.WriteString(w, `<p>No picking tasks.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table class="board"><thead><tr><th>#</th><th>Status</th><th>Target</th><th>Scenario</th><th>Progress</th><th>Created</th><th></th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, t := range data.Tasks {
			_, err := fmt.Fprintf(w, `<tr class="status-%s"><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%d/%d</td><td>%s</td><td>`,
				templ.EscapeString(t.Status), t.ID, templ.EscapeString(t.Status), templ.EscapeString(t.TargetCellCode),
				templ.EscapeString(t.Scenario), t.MovedCount, t.UnitCount, t.CreatedAt.Format("02/01/2006 15:04"))
			if err != nil {
				return err
			}
			if data.CanCancel && !pickingtask.IsTerminal(t.Status) {
				if _, err := fmt.Fprintf(w, `<form method="POST" action="/tasker/picking-tasks/%d/cancel" data-confirm="Cancel this task?"><button type="submit">Cancel</button></form>`, t.ID); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</td></tr>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}
