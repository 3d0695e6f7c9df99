package format

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errWidthMismatch = errors.New("segment width does not match layout")
	errOutOfRange    = errors.New("offset outside line")
	errSplitChar     = errors.New("offset splits a double-byte character")
	errColumnCount   = errors.New("too few columns")
)

// Line is a decoded record addressed by legacy encoding columns.
type Line struct {
	runes      []rune
	cols       []int // cols[i] is the first column of runes[i]; cols[len(runes)] is the width
	singleByte bool
}

// NewLine indexes s by column in the legacy double-byte encoding.
func NewLine(s string) Line {
	return newLine(s, false)
}

// NewSingleByteLine indexes s one column per character, for text decoded
// from a single-byte charset.
func NewSingleByteLine(s string) Line {
	return newLine(s, true)
}

func newLine(s string, singleByte bool) Line {
	runes := []rune(s)
	cols := make([]int, len(runes)+1)
	for i, r := range runes {
		cols[i+1] = cols[i] + columnWidth(r, singleByte)
	}
	return Line{runes: runes, cols: cols, singleByte: singleByte}
}

// columnWidth is the number of bytes r occupied in the source encoding.
func columnWidth(r rune, singleByte bool) int {
	if singleByte || r < 0x80 {
		return 1
	}
	return 2
}

// Width returns the width of the line in columns.
func (l Line) Width() int {
	return l.cols[len(l.cols)-1]
}

// index maps a column to a rune index.
func (l Line) index(col int) (int, error) {
	if col < 0 || col > l.Width() {
		return 0, fmt.Errorf("%w: column %d of %d", errOutOfRange, col, l.Width())
	}
	// cols is sorted; a linear scan is fine for master file line lengths.
	for i, c := range l.cols {
		if c == col {
			return i, nil
		}
		if c > col {
			break
		}
	}
	return 0, fmt.Errorf("%w: column %d", errSplitChar, col)
}

// Sub returns the columns [from, to) as a new line.
func (l Line) Sub(from, to int) (Line, error) {
	if from > to {
		return Line{}, fmt.Errorf("%w: range %d:%d", errOutOfRange, from, to)
	}
	i, err := l.index(from)
	if err != nil {
		return Line{}, err
	}
	j, err := l.index(to)
	if err != nil {
		return Line{}, err
	}
	return newLine(string(l.runes[i:j]), l.singleByte), nil
}

// Head returns everything except the last n columns.
func (l Line) Head(n int) (Line, error) {
	return l.Sub(0, l.Width()-n)
}

// Tail returns the last n columns.
func (l Line) Tail(n int) (Line, error) {
	return l.Sub(l.Width()-n, l.Width())
}

func (l Line) String() string {
	return string(l.runes)
}

// Scrub filters a sliced value down to a character class.
type Scrub func(string) string

// UpperAlpha keeps only A-Z.
func UpperAlpha(s string) string {
	return keep(s, func(r rune) bool { return r >= 'A' && r <= 'Z' })
}

// Binary keeps only 0 and 1.
func Binary(s string) string {
	return keep(s, func(r rune) bool { return r == '0' || r == '1' })
}

func keep(s string, ok func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if ok(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clean(raw string, scrub Scrub) string {
	v := strings.TrimSpace(raw)
	if scrub != nil {
		v = scrub(v)
	}
	return v
}

// Field is one column of a fixed-width table.
type Field struct {
	Name  string
	Width int
	Scrub Scrub
}

// Table is an ordered list of fixed-width fields.
type Table []Field

// Width returns the total width the table covers.
func (t Table) Width() int {
	w := 0
	for _, f := range t {
		w += f.Width
	}
	return w
}

// Columns returns the field names in order.
func (t Table) Columns() []string {
	names := make([]string, len(t))
	for i, f := range t {
		names[i] = f.Name
	}
	return names
}

// Split decomposes seg into row. seg must be exactly as wide as the table.
func (t Table) Split(seg Line, row Row) error {
	if seg.Width() != t.Width() {
		return fmt.Errorf("%w: got %d columns, want %d", errWidthMismatch, seg.Width(), t.Width())
	}
	at := 0
	for _, f := range t {
		v, err := seg.Sub(at, at+f.Width)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		row[f.Name] = clean(v.String(), f.Scrub)
		at += f.Width
	}
	return nil
}

// Span is an explicit column range. Negative offsets count back from the end
// of the line; To == 0 extends the span to the end of the line.
type Span struct {
	Name  string
	From  int
	To    int
	Scrub Scrub
}

func (s Span) bounds(width int) (int, int) {
	from, to := s.From, s.To
	if from < 0 {
		from += width
	}
	switch {
	case to < 0:
		to += width
	case to == 0:
		to = width
	}
	return from, to
}

// Spans is a set of explicit ranges applied to the same line.
type Spans []Span

// Columns returns the span names in order.
func (s Spans) Columns() []string {
	names := make([]string, len(s))
	for i, sp := range s {
		names[i] = sp.Name
	}
	return names
}

// Slice extracts every span from l into row.
func (s Spans) Slice(l Line, row Row) error {
	for _, sp := range s {
		from, to := sp.bounds(l.Width())
		v, err := l.Sub(from, to)
		if err != nil {
			return fmt.Errorf("field %s: %w", sp.Name, err)
		}
		row[sp.Name] = clean(v.String(), sp.Scrub)
	}
	return nil
}

// Delimited is a separator-delimited layout with a fixed column list.
// Trailing extra columns are ignored.
type Delimited struct {
	Sep     string
	Columns []string
}

// Split parses one line.
func (d Delimited) Split(line string, row Row) error {
	parts := strings.Split(line, d.Sep)
	if len(parts) < len(d.Columns) {
		return fmt.Errorf("%w: got %d, want %d", errColumnCount, len(parts), len(d.Columns))
	}
	for i, name := range d.Columns {
		row[name] = strings.TrimSpace(parts[i])
	}
	return nil
}

// eachLine runs fn over every non-blank line of text. The first error aborts
// the parse and reports the 1-based line number.
func eachLine(text string, fn func(line string) (Row, error)) Result {
	var rows []Row
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := fn(line)
		if err != nil {
			return malformed(fmt.Errorf("line %d: %w", n+1, err))
		}
		rows = append(rows, row)
	}
	return rowsResult(rows)
}

// concat joins column lists of multi-stage layouts.
func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
