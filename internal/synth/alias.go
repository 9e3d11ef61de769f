package synth

// AliasMap resolves a table name to its alias (or the table name
// itself, if no alias was given).
type AliasMap map[string]string

// Resolve returns the alias for table, or table unchanged if unknown.
func (a AliasMap) Resolve(table string) string {
	if alias, ok := a[table]; ok {
		return alias
	}
	return table
}
