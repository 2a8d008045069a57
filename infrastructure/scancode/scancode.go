// Package scancode normalizes codes read by scanner terminals.
package scancode

import (
	"strings"

	"golang.org/x/text/width"
)

// Normalize folds full-width characters some scanner keyboards emit, trims
// and upper-cases the value. Used for cell codes and warehouse codes.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(width.Fold.String(code)))
}

// Barcode folds width and trims but keeps case; unit barcodes are case sensitive.
func Barcode(code string) string {
	return strings.TrimSpace(width.Fold.String(code))
}
