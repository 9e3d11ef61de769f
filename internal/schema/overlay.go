package schema

import (
	"encoding/json"
	"os"
	"strings"
)

// curatedMetadata is the on-disk shape of the curated metadata file,
// keyed by table name.
type curatedMetadata struct {
	Description string `json:"description,omitempty"`
	KeyColumns  string `json:"key_columns,omitempty"` // newline-separated
}

// curatedForeignKey is the on-disk shape of one curated FK entry.
type curatedForeignKey struct {
	FKColumn string `json:"fk_column"`
	PKTable  string `json:"pk_table"`
	PKColumn string `json:"pk_column,omitempty"`
}

// ApplyOverlay merges optional curated metadata/FK files onto s, keyed
// by table name. If testDatabaseMode is set, or neither file exists,
// the schema passes through unchanged.
func ApplyOverlay(s *Schema, metadataPath, foreignKeysPath string, testDatabaseMode bool) error {
	if testDatabaseMode {
		return nil
	}

	if metadataPath != "" {
		if raw, err := os.ReadFile(metadataPath); err == nil {
			var curated map[string]curatedMetadata
			if err := json.Unmarshal(raw, &curated); err != nil {
				return err
			}
			applyMetadata(s, curated)
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	if foreignKeysPath != "" {
		if raw, err := os.ReadFile(foreignKeysPath); err == nil {
			var curated map[string][]curatedForeignKey
			if err := json.Unmarshal(raw, &curated); err != nil {
				return err
			}
			applyForeignKeys(s, curated)
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	pruneEmpty(s)
	return nil
}

func applyMetadata(s *Schema, curated map[string]curatedMetadata) {
	for _, t := range s.Tables {
		cm, ok := curated[t.TableName]
		if !ok {
			continue
		}
		if cm.Description != "" {
			t.Description = cm.Description
		}
		if cm.KeyColumns != "" {
			for _, col := range strings.Split(cm.KeyColumns, "\n") {
				if col = strings.TrimSpace(col); col != "" {
					t.KeyColumns = append(t.KeyColumns, col)
				}
			}
		}
	}
}

func applyForeignKeys(s *Schema, curated map[string][]curatedForeignKey) {
	for _, t := range s.Tables {
		cfks, ok := curated[t.TableName]
		if !ok {
			continue
		}
		fks := make([]ForeignKey, 0, len(cfks))
		for _, c := range cfks {
			fks = append(fks, ForeignKey{
				FKColumn: c.FKColumn,
				PKTable:  c.PKTable,
				PKColumn: c.PKColumn,
				Inferred: false,
			})
		}
		t.ForeignKeys = fks
	}
}

// pruneEmpty drops blank key_columns entries left over from a curated
// file with stray blank lines, so the final document carries no
// empty-string noise (mirrors combine_json_schema.py's
// remove_empty_properties).
func pruneEmpty(s *Schema) {
	for _, t := range s.Tables {
		if len(t.KeyColumns) == 0 {
			continue
		}
		kept := t.KeyColumns[:0]
		for _, col := range t.KeyColumns {
			if col != "" {
				kept = append(kept, col)
			}
		}
		t.KeyColumns = kept
	}
}
