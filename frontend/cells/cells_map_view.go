package cells

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"wms/frontend/shared/html"
)

const mapScale = 40

// MapPage draws the active layout as absolutely positioned tiles.
func MapPage(data MapPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<h1>Cell map &middot; %s</h1>`, templ.EscapeString(data.WarehouseCode)); err != nil {
			return err
		}
		if err := html.Flash(data.Status, data.ErrorMessage).Render(ctx, w); err != nil {
			return err
		}

		width, height := 0, 0
		for _, c := range data.Cells {
			if right := (c.X + c.W) * mapScale; right > width {
				width = right
			}
			if bottom := (c.Y + c.H) * mapScale; bottom > height {
				height = bottom
			}
		}
		if _, err := fmt.Fprintf(w, `<div class="cell-map" style="position:relative;width:%dpx;height:%dpx">`, width, height); err != nil {
			return err
		}
		for _, c := range data.Cells {
			class := "cell cell-" + c.CellType
			if !c.Active {
				class += " inactive"
			}
			if c.Blocked() {
				class += " blocked"
			}
			_, err := fmt.Fprintf(w,
				`<a class="%s" href="/tasker/cells/%d/label.pdf" title="%s" style="position:absolute;left:%dpx;top:%dpx;width:%dpx;height:%dpx"><strong>%s</strong><span>%d</span></a>`,
				templ.EscapeString(class), c.ID, templ.EscapeString(c.CellType),
				c.X*mapScale, c.Y*mapScale, c.W*mapScale-4, c.H*mapScale-4,
				templ.EscapeString(c.Code), c.UnitCount)
			if err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</div><ul class="legend">`); err != nil {
			return err
		}
		for _, t := range data.CellTypes {
			if _, err := fmt.Fprintf(w, `<li class="cell-%s">%s</li>`, templ.EscapeString(t), templ.EscapeString(t)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</ul>`)
		return err
	})
}
