package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, dir, name string, v interface{}) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestApplyOverlaySplitsKeyColumnsIntoList(t *testing.T) {
	dir := t.TempDir()
	metaPath := writeJSON(t, dir, "metadata.json", map[string]curatedMetadata{
		"tb_Company": {Description: "Customer companies", KeyColumns: "Name\n  Status  \n\nRegion\n"},
	})

	s := &Schema{Tables: []*Table{{TableName: "tb_Company"}}}
	if err := ApplyOverlay(s, metaPath, "", false); err != nil {
		t.Fatalf("ApplyOverlay failed: %v", err)
	}

	got := s.Tables[0].KeyColumns
	want := []string{"Name", "Status", "Region"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key_columns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if s.Tables[0].Description != "Customer companies" {
		t.Errorf("unexpected description: %q", s.Tables[0].Description)
	}
}

func TestApplyOverlayTestDatabaseModeSkipsMerge(t *testing.T) {
	dir := t.TempDir()
	metaPath := writeJSON(t, dir, "metadata.json", map[string]curatedMetadata{
		"tb_Company": {Description: "should not be applied"},
	})

	s := &Schema{Tables: []*Table{{TableName: "tb_Company"}}}
	if err := ApplyOverlay(s, metaPath, "", true); err != nil {
		t.Fatalf("ApplyOverlay failed: %v", err)
	}
	if s.Tables[0].Description != "" {
		t.Error("test database mode must skip the domain overlay merge entirely")
	}
}

func TestApplyOverlayMergesForeignKeysAndPrunesBlankKeyColumns(t *testing.T) {
	dir := t.TempDir()
	metaPath := writeJSON(t, dir, "metadata.json", map[string]curatedMetadata{
		"tb_User": {KeyColumns: "\n\n"},
	})
	fkPath := writeJSON(t, dir, "fks.json", map[string][]curatedForeignKey{
		"tb_User": {{FKColumn: "CompanyID", PKTable: "tb_Company", PKColumn: "ID"}},
	})

	s := &Schema{Tables: []*Table{{TableName: "tb_User"}}}
	if err := ApplyOverlay(s, metaPath, fkPath, false); err != nil {
		t.Fatalf("ApplyOverlay failed: %v", err)
	}

	if len(s.Tables[0].KeyColumns) != 0 {
		t.Errorf("expected blank key_columns lines to prune to empty, got %v", s.Tables[0].KeyColumns)
	}
	if len(s.Tables[0].ForeignKeys) != 1 || s.Tables[0].ForeignKeys[0].PKTable != "tb_Company" {
		t.Errorf("expected curated FK to be merged, got %+v", s.Tables[0].ForeignKeys)
	}
}

func TestApplyOverlayMissingFilesPassThroughUnchanged(t *testing.T) {
	dir := t.TempDir()
	s := &Schema{Tables: []*Table{{TableName: "tb_Company"}}}
	if err := ApplyOverlay(s, filepath.Join(dir, "absent.json"), filepath.Join(dir, "absent_fks.json"), false); err != nil {
		t.Fatalf("ApplyOverlay failed: %v", err)
	}
	if s.Tables[0].Description != "" || s.Tables[0].KeyColumns != nil {
		t.Error("expected schema to pass through unchanged when no curated files exist")
	}
}
