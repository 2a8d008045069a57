package tsd

import (
	stdcontext "context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	sessioncontext "wms/frontend/shared/context"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/pickingtask"
	"wms/infrastructure/placement"
	"wms/infrastructure/testdb"
	"wms/models"
)

func call(t *testing.T, h http.HandlerFunc, actor models.Actor, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(sessioncontext.NewContextWithActor(req.Context(), actor))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return rr.Code, out
}

func TestShippingTaskFlow(t *testing.T) {
	db := testdb.Open(t)
	auditSvc := audit.NewService(db)
	svc := pickingtask.NewService(db, placement.NewService(db, auditSvc), auditSvc, 0)
	whID := testdb.Warehouse(t, db, "WH1")
	ops := testdb.User(t, db, "ops", "ops", whID)
	worker := testdb.User(t, db, "worker1", "worker", whID)
	worker2 := testdb.User(t, db, "worker2", "worker", whID)
	storage := testdb.Cell(t, db, whID, "S-01", celltype.Storage)
	picking := testdb.Cell(t, db, whID, "P-01", celltype.Picking)
	u1 := testdb.Unit(t, db, whID, "U-1", &storage, celltype.StatusStored)
	u2 := testdb.Unit(t, db, whID, "U-2", &storage, celltype.StatusStored)

	task, err := svc.Create(stdcontext.Background(), ops, pickingtask.CreateInput{TargetCellID: picking, UnitIDs: []int64{u1, u2}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	taskBody := `{"taskId":` + strconv.FormatInt(task.ID, 10) + `}`

	code, out := call(t, ActiveTasksQueryHandler(svc), worker, http.MethodGet, "/api/tsd/shipping-tasks", "")
	if code != http.StatusOK || len(out["tasks"].([]any)) != 1 {
		t.Fatalf("active tasks: %d %v", code, out)
	}

	code, out = call(t, StartTaskCommandHandler(svc), worker, http.MethodPost, "/api/tsd/shipping-tasks/start", taskBody)
	if code != http.StatusOK || out["ok"] != true {
		t.Fatalf("start: %d %v", code, out)
	}
	code, _ = call(t, StartTaskCommandHandler(svc), worker, http.MethodPost, "/api/tsd/shipping-tasks/start", taskBody)
	if code != http.StatusOK {
		t.Fatalf("restart by holder: expected 200, got %d", code)
	}
	code, out = call(t, StartTaskCommandHandler(svc), worker2, http.MethodPost, "/api/tsd/shipping-tasks/start", taskBody)
	if code != http.StatusConflict || !strings.Contains(out["error"].(string), "TASK_LOCKED") {
		t.Fatalf("start by other worker: %d %v", code, out)
	}

	code, out = call(t, CheckUnitQueryHandler(svc), worker, http.MethodGet, "/api/tsd/shipping-tasks/check-unit?unitBarcode=U-1&fromCellCode=s-01", "")
	if code != http.StatusOK || out["found"] != true {
		t.Fatalf("check-unit: %d %v", code, out)
	}
	if to := out["toCell"].(map[string]any); to["code"] != "P-01" {
		t.Fatalf("expected destination P-01, got %v", to)
	}
	code, out = call(t, CheckUnitQueryHandler(svc), worker, http.MethodGet, "/api/tsd/shipping-tasks/check-unit?unitBarcode=U-1&fromCellCode=P-01", "")
	if code != http.StatusOK || out["found"] != false || out["reason"] == "" {
		t.Fatalf("check-unit at wrong cell: %d %v", code, out)
	}
	code, _ = call(t, CheckUnitQueryHandler(svc), worker, http.MethodGet, "/api/tsd/shipping-tasks/check-unit?unitBarcode=NOPE", "")
	if code != http.StatusNotFound {
		t.Fatalf("check-unit unknown barcode: expected 404, got %d", code)
	}

	scan := `{"taskId":` + strconv.FormatInt(task.ID, 10) + `,"unitBarcode":"U-1","fromCellCode":"S-01"}`
	code, out = call(t, ScanUnitCommandHandler(svc), worker, http.MethodPost, "/api/tsd/shipping-tasks/scan", scan)
	if code != http.StatusOK || out["taskCompleted"] != false || out["moved"].(float64) != 1 {
		t.Fatalf("scan: %d %v", code, out)
	}

	code, out = call(t, CompleteBatchCommandHandler(svc), worker, http.MethodPost, "/api/tsd/shipping-tasks/complete-batch", taskBody)
	if code != http.StatusOK || out["taskCompleted"] != false || !strings.Contains(out["message"].(string), "1/2") {
		t.Fatalf("partial batch: %d %v", code, out)
	}

	testdb.Exec(t, db, `UPDATE units SET cell_id = ?, status = ? WHERE id = ?`, picking, celltype.StatusPicking, u2)
	code, out = call(t, CompleteBatchCommandHandler(svc), worker, http.MethodPost, "/api/tsd/shipping-tasks/complete-batch", taskBody)
	if code != http.StatusOK || out["taskCompleted"] != true {
		t.Fatalf("final batch: %d %v", code, out)
	}
	if got := testdb.LoadTask(t, db, task.ID).Status; got != pickingtask.StatusDone {
		t.Fatalf("expected done, got %s", got)
	}

	code, _ = call(t, CompleteBatchCommandHandler(svc), worker, http.MethodPost, "/api/tsd/shipping-tasks/complete-batch", taskBody)
	if code != http.StatusBadRequest {
		t.Fatalf("batch on done task: expected 400, got %d", code)
	}
}

func TestCompleteBatchRequiresTaskID(t *testing.T) {
	db := testdb.Open(t)
	auditSvc := audit.NewService(db)
	svc := pickingtask.NewService(db, placement.NewService(db, auditSvc), auditSvc, 0)
	whID := testdb.Warehouse(t, db, "WH1")
	worker := testdb.User(t, db, "worker1", "worker", whID)

	code, out := call(t, CompleteBatchCommandHandler(svc), worker, http.MethodPost, "/api/tsd/shipping-tasks/complete-batch", `{}`)
	if code != http.StatusBadRequest || !strings.Contains(out["error"].(string), "taskId") {
		t.Fatalf("expected 400 naming taskId, got %d %v", code, out)
	}
}
