package shipments

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	sessioncontext "wms/frontend/shared/context"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/placement"
	"wms/infrastructure/shipment"
	"wms/infrastructure/testdb"
	"wms/models"
)

func router(svc *shipment.Service, actor models.Actor) chi.Router {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(sessioncontext.NewContextWithActor(req.Context(), actor)))
		})
	})
	r.Post("/api/units/{id}/ship-out", ShipOutCommandHandler(svc))
	r.Get("/api/shipments", ListShipmentsQueryHandler(svc))
	r.Post("/api/shipments/{id}/return", ReturnShipmentCommandHandler(svc))
	return r
}

func TestShipOutHandlers(t *testing.T) {
	db := testdb.Open(t)
	auditSvc := audit.NewService(db)
	svc := shipment.NewService(db, placement.NewService(db, auditSvc), auditSvc)
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "ops", "ops", whID)
	shipping := testdb.Cell(t, db, whID, "SH-01", celltype.Shipping)
	storage := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	shippable := testdb.Unit(t, db, whID, "U-1", &shipping, celltype.StatusShipping)
	stored := testdb.Unit(t, db, whID, "U-2", &storage, celltype.StatusStored)
	r := router(svc, actor)

	tests := []struct {
		name   string
		unitID int64
		body   string
		status int
	}{
		{name: "missing courier", unitID: shippable, body: `{}`, status: http.StatusBadRequest},
		{name: "not in shipping cell", unitID: stored, body: `{"courierName":"DHL"}`, status: http.StatusBadRequest},
		{name: "unknown unit", unitID: 9999, body: `{"courierName":"DHL"}`, status: http.StatusNotFound},
		{name: "ok", unitID: shippable, body: `{"courierName":"DHL"}`, status: http.StatusCreated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/units/"+strconv.FormatInt(tc.unitID, 10)+"/ship-out", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
		})
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/shipments?status=out", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"U-1"`) {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	shipmentID := testdb.Count(t, db, `SELECT id FROM outbound_shipments WHERE unit_id = ?`, shippable)

	rr = httptest.NewRecorder()
	body := `{"cellId":` + strconv.FormatInt(storage, 10) + `,"reason":"refused"}`
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/shipments/"+strconv.Itoa(shipmentID)+"/return", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("return: %d %s", rr.Code, rr.Body.String())
	}
	if unit := testdb.LoadUnit(t, db, shippable); unit.CellID == nil || *unit.CellID != storage || unit.Status != celltype.StatusStored {
		t.Fatalf("unit not returned to storage: %+v", unit)
	}
}
