package phrasetable

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Writer emits phrase-table lines in the Moses text format.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w in a buffered phrase-table writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write appends one entry, leaving the alignment, count, sparse, and
// key-value columns empty.
func (w *Writer) Write(e Entry) error {
	_, err := fmt.Fprintf(w.bw, "%s ||| %s ||| %s %s %s %s ||| ||| ||| |||\n",
		e.Source, e.Target,
		formatScore(e.Inverse), formatScore(e.InverseLexical),
		formatScore(e.Direct), formatScore(e.DirectLexical))
	return err
}

// Flush writes any buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Record is a raw phrase-table line split on its column separator.
// Surrounding whitespace is preserved inside the columns so that a joined
// record reproduces the original line byte for byte.
type Record struct {
	Columns []string
}

// ParseRecord splits one phrase-table line into its raw columns.
func ParseRecord(line string) Record {
	return Record{Columns: strings.Split(line, FieldSeparator)}
}

// String joins the columns back into a phrase-table line.
func (r Record) String() string {
	return strings.Join(r.Columns, FieldSeparator)
}

// Source returns the source phrase with surrounding whitespace removed.
func (r Record) Source() string {
	if len(r.Columns) < 1 {
		return ""
	}
	return strings.TrimSpace(r.Columns[0])
}

// Target returns the target phrase with surrounding whitespace removed.
func (r Record) Target() string {
	if len(r.Columns) < 2 {
		return ""
	}
	return strings.TrimSpace(r.Columns[1])
}

// Scores returns the whitespace-split tokens of the score column.
func (r Record) Scores() []string {
	if len(r.Columns) < 3 {
		return nil
	}
	return strings.Fields(r.Columns[2])
}

// AppendScore adds one score token to the end of the score column.
func (r *Record) AppendScore(tok string) {
	r.Columns[2] = r.Columns[2] + tok + " "
}

// Reader scans phrase-table lines from r.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r in a buffered phrase-table reader.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	return &Reader{sc: sc}
}

// Scan advances to the next line, returning false at end of input.
func (r *Reader) Scan() bool {
	return r.sc.Scan()
}

// Record returns the current line split into raw columns.
func (r *Reader) Record() Record {
	return ParseRecord(r.sc.Text())
}

// Err reports the first error encountered while scanning.
func (r *Reader) Err() error {
	return r.sc.Err()
}
