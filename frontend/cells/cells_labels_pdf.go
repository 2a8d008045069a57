package cells

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
)

type CellLabelData struct {
	CellID        int64
	Code          string
	CellType      string
	WarehouseCode string
}

func renderCellLabelsPDF(labels []CellLabelData, printedAt time.Time) ([]byte, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no cell labels to render")
	}

	pdf := gofpdf.New("L", "mm", "A5", "")
	pdf.SetTitle("Cell Labels", false)
	pdf.SetAutoPageBreak(false, 0)

	for i, label := range labels {
		code := strings.TrimSpace(label.Code)
		if code == "" {
			return nil, fmt.Errorf("cell %d has no code", label.CellID)
		}
		barcodePNG, err := renderCode128PNG(code, 1200, 260)
		if err != nil {
			return nil, err
		}

		pdf.AddPage()
		pageW, pageH := pdf.GetPageSize()
		margin := 8.0
		pdf.SetLineWidth(0.35)
		pdf.Rect(margin, margin, pageW-2*margin, pageH-2*margin, "")

		warehouse := strings.TrimSpace(label.WarehouseCode)
		if warehouse == "" {
			warehouse = "-"
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(80, 80, 80)
		pdf.SetXY(margin+3, margin+3)
		pdf.CellFormat(pageW-2*margin-6, 5, "WAREHOUSE "+warehouse, "", 0, "L", false, 0, "")
		pdf.SetXY(margin+3, margin+3)
		pdf.CellFormat(pageW-2*margin-6, 5, "Printed: "+printedAt.Format("02/01/2006"), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)

		codeFont := fitFontSizeForWidth(pdf, "Helvetica", "B", 64, 24, code, pageW-2*margin-10)
		pdf.SetFont("Helvetica", "B", codeFont)
		pdf.SetXY(margin+5, margin+12)
		pdf.CellFormat(pageW-2*margin-10, 28, code, "", 0, "C", false, 0, "")

		pdf.SetFont("Helvetica", "", 14)
		pdf.SetXY(margin+5, margin+42)
		pdf.CellFormat(pageW-2*margin-10, 8, "Type: "+strings.ToUpper(label.CellType), "", 0, "C", false, 0, "")

		opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		imageName := "cell-barcode-" + strconv.FormatInt(label.CellID, 10) + "-" + strconv.Itoa(i)
		pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
		imgW := pageW - 2*margin - 30
		imgH := 40.0
		x := (pageW - imgW) / 2
		y := margin + 56
		pdf.ImageOptions(imageName, x, y, imgW, imgH, false, opt, 0, "")

		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetXY(margin+5, y+imgH+3)
		pdf.CellFormat(pageW-2*margin-10, 7, code, "", 0, "C", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func fitFontSizeForWidth(pdf *gofpdf.Fpdf, family, style string, base, min float64, text string, maxWidth float64) float64 {
	if maxWidth <= 0 {
		return min
	}
	size := base
	pdf.SetFont(family, style, size)
	for size > min && pdf.GetStringWidth(text) > maxWidth {
		size -= 0.5
		pdf.SetFont(family, style, size)
	}
	return size
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	var barcodePNG bytes.Buffer
	if err := png.Encode(&barcodePNG, toNRGBA(scaled)); err != nil {
		return nil, err
	}
	return barcodePNG.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}
