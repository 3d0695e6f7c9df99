package format

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSourceAbsent is carried by a malformed result when a format that
// requires its source file is handed an absent input.
var ErrSourceAbsent = errors.New("master file is absent")

// Row is one parsed record keyed by column name.
type Row map[string]string

// Status discriminates the outcome of a parse.
type Status int

const (
	StatusRows      Status = iota // parsed, at least one row
	StatusEmpty                   // parsed, no data rows
	StatusAbsent                  // source absent; equivalent to empty
	StatusMalformed               // input could not be parsed
)

func (s Status) String() string {
	switch s {
	case StatusRows:
		return "rows"
	case StatusEmpty:
		return "empty"
	case StatusAbsent:
		return "absent"
	case StatusMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of parsing one master file.
// Rows is always nil unless Status is StatusRows; Err is set only for StatusMalformed.
type Result struct {
	Rows   []Row
	Status Status
	Err    error
}

// OK reports whether the parse succeeded, with or without rows.
func (r Result) OK() bool {
	return r.Status != StatusMalformed
}

func rowsResult(rows []Row) Result {
	if len(rows) == 0 {
		return Result{Status: StatusEmpty}
	}
	return Result{Rows: rows, Status: StatusRows}
}

func absentResult() Result {
	return Result{Status: StatusAbsent}
}

func malformed(err error) Result {
	return Result{Status: StatusMalformed, Err: err}
}

// Input is the decoded content of a master file.
type Input struct {
	Text     string
	Encoding string // charset Text was decoded from; empty means the legacy double-byte one
	Absent   bool   // the remote source did not exist
}

// Line indexes one line of the input by column.
func (in Input) Line(s string) Line {
	switch strings.ToLower(in.Encoding) {
	case "iso-8859-1", "latin1":
		return NewSingleByteLine(s)
	}
	return NewLine(s)
}

// Format is one master file layout.
type Format interface {
	// Name identifies the layout in logs and errors.
	Name() string
	// Columns lists the names every produced row carries.
	Columns() []string
	// AllowsAbsent reports whether a missing source is a normal, empty outcome.
	AllowsAbsent() bool
	// Parse turns decoded text into rows.
	Parse(in Input) Result

	sealed()
}

// strict is embedded by formats that require their source file.
type strict struct{}

func (strict) AllowsAbsent() bool { return false }
func (strict) sealed()            {}
