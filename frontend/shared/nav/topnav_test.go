package nav

import (
	"testing"

	"wms/models"
)

func TestBuildTopNavDataFiltersByPermission(t *testing.T) {
	session := models.Session{
		User:              models.User{Username: "sup", Role: "supervisor"},
		ScreenPermissions: map[string]int{"CELLS_VIEW": 1, "AUDIT_VIEW": 1},
	}
	data := BuildTopNavData(session, "WH1", "/tasker/audit")
	if len(data.Links) != 2 {
		t.Fatalf("expected two links, got %+v", data.Links)
	}
	if data.Links[0].Active || !data.Links[1].Active {
		t.Fatalf("unexpected active flags: %+v", data.Links)
	}
	if data.WarehouseCode != "WH1" || data.Username != "sup" {
		t.Fatalf("unexpected header data: %+v", data)
	}
}
