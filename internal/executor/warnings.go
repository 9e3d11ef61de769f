package executor

import (
	"fmt"

	"nlsql/internal/adapter"
)

// CollectWarnings adapts the teacher's verify_sql result-quality checks
// (duplicate rows, unexpected NULLs) into the executor's additive,
// advisory warnings[] field. It never alters the result shape.
func CollectWarnings(qr *adapter.QueryResult) []string {
	if qr == nil {
		return nil
	}

	var warnings []string

	hasNull := false
	for _, row := range qr.Rows {
		for _, v := range row {
			if v == nil {
				hasNull = true
				break
			}
		}
		if hasNull {
			break
		}
	}
	if hasNull {
		warnings = append(warnings, "result contains NULL values")
	}

	if dup := duplicateRowCount(qr.Rows); dup > 0 {
		warnings = append(warnings, fmt.Sprintf("result contains %d duplicate row(s)", dup))
	}

	return warnings
}

// duplicateRowCount counts rows whose serialized value set repeats an
// earlier row's.
func duplicateRowCount(rows []map[string]interface{}) int {
	seen := make(map[string]int, len(rows))
	dup := 0
	for _, row := range rows {
		key := rowKey(row)
		seen[key]++
		if seen[key] > 1 {
			dup++
		}
	}
	return dup
}

func rowKey(row map[string]interface{}) string {
	return fmt.Sprintf("%v", row)
}
