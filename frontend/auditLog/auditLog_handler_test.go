package auditlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sessioncontext "wms/frontend/shared/context"
	"wms/infrastructure/audit"
	"wms/infrastructure/testdb"
	"wms/models"
)

func seed(t *testing.T) (*audit.Service, func(string) *http.Request) {
	t.Helper()
	db := testdb.Open(t)
	auditSvc := audit.NewService(db)
	whID := testdb.Warehouse(t, db, "WH1")
	other := testdb.Warehouse(t, db, "WH2")
	actor := testdb.User(t, db, "sup", "supervisor", whID)
	ctx := context.Background()
	auditSvc.Emit(ctx, actor, audit.Event{WarehouseID: whID, Action: "unit.move", EntityType: "unit", EntityID: "1", Summary: "moved <U-1>"})
	auditSvc.Emit(ctx, actor, audit.Event{WarehouseID: whID, Action: "cell.create", EntityType: "cell", EntityID: "7", Summary: "cell created"})
	auditSvc.Emit(ctx, actor, audit.Event{WarehouseID: other, Action: "unit.move", EntityType: "unit", EntityID: "2", Summary: "elsewhere"})

	build := func(target string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		return req.WithContext(sessioncontext.NewContextWithActor(req.Context(), actor))
	}
	return auditSvc, build
}

func TestAuditQueryHandlerFilters(t *testing.T) {
	auditSvc, build := seed(t)
	today := time.Now().UTC().Format(time.DateOnly)

	tests := []struct {
		name   string
		target string
		status int
		count  int
	}{
		{name: "warehouse scoped", target: "/api/audit", status: http.StatusOK, count: 2},
		{name: "by action", target: "/api/audit?action=unit.move", status: http.StatusOK, count: 1},
		{name: "by entity", target: "/api/audit?entityType=cell&entityId=7", status: http.StatusOK, count: 1},
		{name: "today", target: "/api/audit?date=" + today, status: http.StatusOK, count: 2},
		{name: "other day", target: "/api/audit?date=2001-01-01", status: http.StatusOK, count: 0},
		{name: "bad date", target: "/api/audit?date=01/01/2001", status: http.StatusBadRequest},
		{name: "bad limit", target: "/api/audit?limit=-3", status: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			AuditQueryHandler(auditSvc).ServeHTTP(rr, build(tc.target))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			var out struct {
				Events []models.AuditEvent `json:"events"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(out.Events) != tc.count {
				t.Fatalf("expected %d events, got %d", tc.count, len(out.Events))
			}
		})
	}
}

func TestAuditPageEscapesSummary(t *testing.T) {
	rr := httptest.NewRecorder()
	page := AuditPage(PageData{WarehouseCode: "WH1", Rows: []models.AuditEvent{{Action: "unit.move", Summary: "moved <U-1>", ActorName: "sup"}}})
	if err := page.Render(context.Background(), rr); err != nil {
		t.Fatalf("render: %v", err)
	}
	if body := rr.Body.String(); !strings.Contains(body, "moved &lt;U-1&gt;") {
		t.Fatalf("summary not escaped: %s", body)
	}
}
