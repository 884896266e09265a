package feed

import "strings"

// Row is one spreadsheet-style record keyed by column header.
type Row map[string]string

// Get returns the trimmed value of a column, or "".
func (r Row) Get(column string) string {
	return strings.TrimSpace(r[column])
}
