package extractor

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedLayout is returned when header/role detection cannot find a
// row matching the NAME role plus at least one other role within the scan
// window. Nothing is emitted for such a sheet.
var ErrUnrecognizedLayout = errors.New("unrecognized sheet layout: no usable header row found")

// Severity of a diagnostic entry
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes
const (
	CodeCellParse       = "CELL_PARSE"
	CodeUnknownCurrency = "UNKNOWN_CURRENCY"
	CodeNoiseRow        = "NOISE_ROW"
	CodeEmptyBlock      = "EMPTY_BLOCK"
	CodeUnresolvedImage = "UNRESOLVED_IMAGE"
	CodeImageTooSmall   = "IMAGE_TOO_SMALL"
	CodeOrphanRow       = "ORPHAN_ROW"
)

// Diagnostic records a row/cell level problem encountered during extraction.
// Row and Column are 1-based sheet coordinates; zero means "not applicable".
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Row      int      `json:"row,omitempty"`
	Column   int      `json:"column,omitempty"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

func warnf(row, col int, code, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Row:      row,
		Column:   col,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}
