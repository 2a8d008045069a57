// Package celltype maps cell types to the unit status a unit takes when it
// enters a cell of that type. Every placement resolves status through
// StatusFor; nothing else derives status from a cell type.
package celltype

// Cell types.
const (
	Bin       = "bin"
	Storage   = "storage"
	Picking   = "picking"
	Shipping  = "shipping"
	Receiving = "receiving"
	Transfer  = "transfer"
	Surplus   = "surplus"
	Rejected  = "rejected"
	FF        = "ff"
)

// Unit statuses.
const (
	StatusReceiving = "receiving"
	StatusBin       = "bin"
	StatusStored    = "stored"
	StatusPicking   = "picking"
	StatusShipping  = "shipping"
	StatusOut       = "out"
	StatusRejected  = "rejected"
	StatusFF        = "ff"
	StatusInTransit = "in_transit"
)

var cellTypes = []string{Bin, Storage, Picking, Shipping, Receiving, Transfer, Surplus, Rejected, FF}

var unitStatuses = map[string]struct{}{
	StatusReceiving: {},
	StatusBin:       {},
	StatusStored:    {},
	StatusPicking:   {},
	StatusShipping:  {},
	StatusOut:       {},
	StatusRejected:  {},
	StatusFF:        {},
	StatusInTransit: {},
}

var statusByType = map[string]string{
	Bin:      StatusBin,
	Storage:  StatusStored,
	Shipping: StatusShipping,
	Picking:  StatusPicking,
	Rejected: StatusRejected,
}

// StatusFor returns the status a unit gets when placed into a cell of
// cellType. ok is false when the type has no mapped status and the caller
// must pick a fallback.
func StatusFor(cellType string) (status string, ok bool) {
	status, ok = statusByType[cellType]
	return status, ok
}

// StatusForOr is StatusFor with a fallback.
func StatusForOr(cellType, fallback string) string {
	if s, ok := StatusFor(cellType); ok {
		return s
	}
	return fallback
}

// IsKnownType reports whether t is a declared cell type.
func IsKnownType(t string) bool {
	for _, ct := range cellTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// Types returns the declared cell types in display order.
func Types() []string {
	return append([]string(nil), cellTypes...)
}

// IsKnownStatus reports whether s is a declared unit status.
func IsKnownStatus(s string) bool {
	_, ok := unitStatuses[s]
	return ok
}

// IngressAllowed applies the cell-to-cell ingress rules. A unit sitting in a
// rejected cell cannot go straight to a bin cell.
func IngressAllowed(fromType, toType string) bool {
	return !(fromType == Rejected && toType == Bin)
}
