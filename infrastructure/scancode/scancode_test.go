package scancode

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		" a-01-02 ": "A-01-02",
		"Ｂ１２":      "B12",
		"":          "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBarcodeKeepsCase(t *testing.T) {
	if got := Barcode(" ｐkg-9 "); got != "pkg-9" {
		t.Fatalf("unexpected barcode %q", got)
	}
}
