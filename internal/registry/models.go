// Package registry exports the public state of the registry (projects and
// the credits issued against them) as CSV or XLSX for verifiers.
package registry

import "time"

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv (the default when empty) or xlsx.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, true
	case FormatXLSX:
		return FormatXLSX, true
	}
	return "", false
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Credit states as they appear in exports.
const (
	CreditAvailable = "available"
	CreditOwned     = "owned"
	CreditRetired   = "retired"
)

// Table is one exported sheet: a header row and its cell values.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

var projectColumns = []string{
	"Project ID", "Name", "Ecosystem", "Location", "Area (ha)", "Status",
	"Manager", "Registered At", "Credits Issued (tCO2e)", "On-chain Tx",
}

var creditColumns = []string{
	"Credit ID", "Project ID", "Project Name", "Amount (tCO2e)", "State",
	"Owner ID", "Verified At", "Retired At", "Retirement Reason", "Evidence CID",
	"MRV ID", "On-chain Tx",
}

// Snapshot is the data set one export covers.
type Snapshot struct {
	GeneratedAt time.Time
	Projects    Table
	Credits     Table
}
