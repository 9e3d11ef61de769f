package schema

import "regexp"

// idColumnPatterns are tried in order; the first match wins. Capture
// group 1 is the base name (e.g. "Company" from "CompanyID").
var idColumnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+)ID$`),
	regexp.MustCompile(`(?i)^(.+)Id$`),
	regexp.MustCompile(`(?i)^(.+)_ID$`),
	regexp.MustCompile(`(?i)^(.+)_Id$`),
	regexp.MustCompile(`(?i)^(.+)_id$`),
}

// IDColumn is one detected ID-style column and its extracted base name.
type IDColumn struct {
	ColumnName string
	BaseName   string
}

// DetectIDColumns finds every column whose name matches an ID-suffix
// pattern. The column named exactly ID/Id/id is never an ID-column — it
// is the primary-key candidate, not a foreign-key candidate.
func DetectIDColumns(t *Table) []IDColumn {
	var found []IDColumn
	for _, c := range t.Columns {
		if c.Name == "ID" || c.Name == "Id" || c.Name == "id" {
			continue
		}
		for _, re := range idColumnPatterns {
			if m := re.FindStringSubmatch(c.Name); m != nil {
				found = append(found, IDColumn{ColumnName: c.Name, BaseName: m[1]})
				break
			}
		}
	}
	return found
}
