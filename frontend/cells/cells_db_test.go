package cells

import (
	stdcontext "context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sessioncontext "wms/frontend/shared/context"
	"wms/infrastructure/apperr"
	"wms/infrastructure/audit"
	"wms/infrastructure/celltype"
	"wms/infrastructure/testdb"
)

func TestCreateCellNormalizesCodeAndRejectsDuplicates(t *testing.T) {
	db := testdb.Open(t)
	ctx := stdcontext.Background()
	whID := testdb.Warehouse(t, db, "WH1")

	cell, err := CreateCell(ctx, db, whID, CreateCellRequest{Code: " a-01 ", CellType: "Storage"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cell.Code != "A-01" || cell.CellType != "storage" || cell.W != 1 || cell.H != 1 || !cell.Active {
		t.Fatalf("unexpected cell: %+v", cell)
	}
	if _, err := CreateCell(ctx, db, whID, CreateCellRequest{Code: "A-01", CellType: "storage"}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := CreateCell(ctx, db, whID, CreateCellRequest{Code: "B-01", CellType: "attic"}); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input for unknown type, got %v", err)
	}

	otherWH := testdb.Warehouse(t, db, "WH2")
	if _, err := CreateCell(ctx, db, otherWH, CreateCellRequest{Code: "A-01", CellType: "storage"}); err != nil {
		t.Fatalf("same code in another warehouse should be allowed: %v", err)
	}
}

func TestUpdateCellMergesMetaAndGuardsDeactivation(t *testing.T) {
	db := testdb.Open(t)
	ctx := stdcontext.Background()
	whID := testdb.Warehouse(t, db, "WH1")
	cellID := testdb.Cell(t, db, whID, "S-1", celltype.Storage)
	testdb.Unit(t, db, whID, "U-1", &cellID, celltype.StatusStored)

	cell, err := UpdateCell(ctx, db, whID, cellID, UpdateCellRequest{Meta: map[string]any{"blocked": true, "zone": "A"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !cell.Blocked() || cell.Meta["zone"] != "A" {
		t.Fatalf("meta not applied: %+v", cell.Meta)
	}
	cell, err = UpdateCell(ctx, db, whID, cellID, UpdateCellRequest{Meta: map[string]any{"blocked": nil}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if cell.Blocked() || cell.Meta["zone"] != "A" {
		t.Fatalf("expected blocked removed and zone kept: %+v", cell.Meta)
	}

	if _, err := DeactivateCell(ctx, db, whID, cellID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict deactivating occupied cell, got %v", err)
	}
	testdb.Exec(t, db, `UPDATE units SET cell_id = NULL WHERE cell_id = ?`, cellID)
	cell, err = DeactivateCell(ctx, db, whID, cellID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if cell.Active {
		t.Fatalf("expected inactive cell")
	}

	if _, err := UpdateCell(ctx, db, testdb.Warehouse(t, db, "WH2"), cellID, UpdateCellRequest{}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found across warehouses, got %v", err)
	}
}

func TestListCellsCountsUnits(t *testing.T) {
	db := testdb.Open(t)
	ctx := stdcontext.Background()
	whID := testdb.Warehouse(t, db, "WH1")
	storage := testdb.Cell(t, db, whID, "S-1", celltype.Storage)
	testdb.Cell(t, db, whID, "P-1", celltype.Picking)
	testdb.Unit(t, db, whID, "U-1", &storage, celltype.StatusStored)
	testdb.Unit(t, db, whID, "U-2", &storage, celltype.StatusStored)

	rows, err := ListCells(ctx, db, ListFilter{WarehouseID: whID, CellType: celltype.Storage})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "S-1" || rows[0].UnitCount != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestImportCSVUpsertsAndCountsErrors(t *testing.T) {
	db := testdb.Open(t)
	ctx := stdcontext.Background()
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "sup", "supervisor", whID)
	testdb.Cell(t, db, whID, "S-1", celltype.Storage)

	csvData := strings.Join([]string{
		"code,cell_type,x,y,w,h",
		"s-1,picking,1,2,3,4",
		"S-2,storage",
		"S-3,attic",
		"S-4,storage,1,2",
		",storage",
	}, "\n")
	summary, err := ImportCSV(ctx, db, audit.NewService(db), actor, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Inserted != 1 || summary.Updated != 1 || summary.Errors != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Messages) != 3 || !strings.HasPrefix(summary.Messages[0], "line 4:") {
		t.Fatalf("unexpected messages: %v", summary.Messages)
	}

	rows, err := ListCells(ctx, db, ListFilter{WarehouseID: whID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(rows))
	}
	if rows[0].Code != "S-1" || rows[0].CellType != celltype.Picking || rows[0].X != 1 || rows[0].H != 4 {
		t.Fatalf("S-1 not updated: %+v", rows[0].Cell)
	}
	if n := testdb.Count(t, db, `SELECT COUNT(1) FROM audit_events WHERE action = 'cells.import'`); n != 1 {
		t.Fatalf("expected one import audit event, got %d", n)
	}
}

func TestImportCSVRejectsBadHeader(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "sup", "supervisor", whID)

	_, err := ImportCSV(stdcontext.Background(), db, nil, actor, strings.NewReader("barcode,type\nA,storage\n"))
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestImportCSVAcceptsByteOrderMark(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "sup", "supervisor", whID)

	summary, err := ImportCSV(stdcontext.Background(), db, nil, actor, strings.NewReader("\ufeffcode,cell_type\nB-01,bin\n"))
	if err != nil {
		t.Fatalf("import with BOM: %v", err)
	}
	if summary.Inserted != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRenderCellLabelsPDF(t *testing.T) {
	t.Parallel()

	pdf, err := renderCellLabelsPDF([]CellLabelData{
		{CellID: 1, Code: "S-01", CellType: "storage", WarehouseCode: "WH1"},
		{CellID: 2, Code: "P-01", CellType: "picking", WarehouseCode: "WH1"},
	}, time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("renderCellLabelsPDF returned error: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		t.Fatalf("expected pdf output")
	}
	if _, err := renderCellLabelsPDF(nil, time.Now()); err == nil {
		t.Fatalf("expected error for empty label set")
	}
}

func TestCellMapPageRendersCells(t *testing.T) {
	db := testdb.Open(t)
	whID := testdb.Warehouse(t, db, "WH1")
	actor := testdb.User(t, db, "sup", "supervisor", whID)
	testdb.Cell(t, db, whID, "S-<1>", celltype.Storage)

	req := httptest.NewRequest(http.MethodGet, "/tasker/cells/map", nil)
	req = req.WithContext(sessioncontext.NewContextWithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	CellMapPageQueryHandler(db).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "S-&lt;1&gt;") || !strings.Contains(body, "cell-storage") {
		t.Fatalf("map page missing escaped cell: %s", body)
	}
}
