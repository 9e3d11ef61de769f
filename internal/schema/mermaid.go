package schema

import (
	"fmt"
	"strings"
)

// MermaidER renders s as a Mermaid entity-relationship diagram, useful
// for a human reviewing the overlay/FK-inference output before it
// reaches the planner.
func MermaidER(s *Schema) string {
	var sb strings.Builder
	sb.WriteString("erDiagram\n")

	relationships := make(map[string]bool)
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			if fk.PKTable == "" {
				continue
			}
			refTable := strings.ToUpper(fk.PKTable)
			currentTable := strings.ToUpper(t.TableName)
			relationKey := fmt.Sprintf("%s_%s_%s", refTable, currentTable, fk.FKColumn)
			if !relationships[relationKey] {
				sb.WriteString(fmt.Sprintf("    %s ||--o{ %s : \"has\"\n", refTable, currentTable))
				relationships[relationKey] = true
			}
		}
	}
	sb.WriteString("\n")

	for _, t := range s.Tables {
		tableName := strings.ToUpper(t.TableName)
		sb.WriteString(fmt.Sprintf("    %s {\n", tableName))
		for _, c := range t.Columns {
			var tags []string
			if c.Name == t.PrimaryKey {
				tags = append(tags, "PK")
			}
			for _, fk := range t.ForeignKeys {
				if fk.FKColumn == c.Name {
					tags = append(tags, "FK")
					break
				}
			}
			tagStr := ""
			if len(tags) > 0 {
				tagStr = " " + strings.Join(tags, ",")
			}
			sb.WriteString(fmt.Sprintf("        %s %s%s\n", simplifyType(c.DataType), c.Name, tagStr))
		}
		sb.WriteString("    }\n")
	}

	return sb.String()
}

// simplifyType collapses a dialect-specific type string to a Mermaid-friendly label.
func simplifyType(fullType string) string {
	t := strings.ToLower(fullType)
	switch {
	case strings.Contains(t, "int"):
		return "int"
	case strings.Contains(t, "varchar"), strings.Contains(t, "char"):
		return "string"
	case strings.Contains(t, "text"):
		return "text"
	case strings.Contains(t, "real"), strings.Contains(t, "float"), strings.Contains(t, "double"), strings.Contains(t, "decimal"), strings.Contains(t, "numeric"):
		return "float"
	case strings.Contains(t, "date"), strings.Contains(t, "time"):
		return "datetime"
	case strings.Contains(t, "bool"), strings.Contains(t, "bit"):
		return "boolean"
	default:
		return "string"
	}
}
