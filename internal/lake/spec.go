// TableSpec lives here so backend packages can import it without depending
// on each other.

package lake

// Logical column types understood by every backend. Backends map these onto
// native types (e.g. "float" becomes REAL on SQLite and DOUBLE PRECISION on
// Postgres).
const (
	TypeText     = "text"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeBoolean  = "boolean"
	TypeDate     = "date"
	TypeTime     = "time"
	TypeDateTime = "datetime"
)

// RowSeqColumn is the implicit ordering key added to every lake table.
// Ingestion assigns it starting at 1 in source order.
const RowSeqColumn = "row_seq"

type TableSpec struct {
	Name    string
	Columns []ColumnSpec
}

type ColumnSpec struct {
	Name     string
	Type     string // one of the Type* logical types
	Nullable bool
}

// TextTable builds a spec with every listed column typed text and nullable,
// which is the shape of a raw ingest table.
func TextTable(name string, columns []string) TableSpec {
	spec := TableSpec{Name: name, Columns: make([]ColumnSpec, 0, len(columns))}
	for _, c := range columns {
		spec.Columns = append(spec.Columns, ColumnSpec{Name: c, Type: TypeText, Nullable: true})
	}
	return spec
}
