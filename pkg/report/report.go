// Package report renders per-commit line totals.
//
// The text format prints one "YYYY-MM-DD HH:MM:SS <commit> <lines>" line per
// record as soon as it is written. The other formats collect records and
// render them on Close.
package report

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
	FormatPlot  = "plot"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Layouts of the date and time fields of a text line.
const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Record is the line total of one commit.
type Record struct {
	When     time.Time
	CommitID string
	Lines    int64
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML, FormatTable, FormatPlot}
}

// ValidFormat reports whether name is a supported format.
func ValidFormat(name string) bool {
	return slices.Contains(Formats(), name)
}

// Writer consumes records in traversal order.
type Writer interface {
	// Write adds one record.
	Write(rec Record) error
	// Close flushes buffered output. Records written after Close are an error.
	Close() error
}

// Options tune rendering.
type Options struct {
	// Location is the time zone timestamps are shown in. Nil means local time.
	Location *time.Location
	// Title labels the table and plot outputs, usually the repository path.
	Title string
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}

	return o.Location
}

// NewWriter returns a Writer rendering format to w.
func NewWriter(format string, w io.Writer, opts Options) (Writer, error) {
	switch format {
	case FormatText, "":
		return &textWriter{w: w, loc: opts.location()}, nil
	case FormatJSON:
		return newBuffered(w, opts, renderJSON), nil
	case FormatYAML:
		return newBuffered(w, opts, renderYAML), nil
	case FormatTable:
		return newBuffered(w, opts, renderTable), nil
	case FormatPlot:
		return newBuffered(w, opts, renderPlot), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// FormatLine renders rec the way the text format does, without a newline.
func FormatLine(rec Record, loc *time.Location) string {
	when := rec.When.In(loc)

	return fmt.Sprintf("%s %s %s %d", when.Format(dateLayout), when.Format(timeLayout), rec.CommitID, rec.Lines)
}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("report writer closed")

type textWriter struct {
	w      io.Writer
	loc    *time.Location
	closed bool
}

func (t *textWriter) Write(rec Record) error {
	if t.closed {
		return ErrClosed
	}

	_, err := fmt.Fprintln(t.w, FormatLine(rec, t.loc))
	if err != nil {
		return fmt.Errorf("write report line: %w", err)
	}

	return nil
}

func (t *textWriter) Close() error {
	t.closed = true

	return nil
}

type renderFunc func(w io.Writer, records []Record, opts Options) error

type buffered struct {
	w       io.Writer
	opts    Options
	render  renderFunc
	records []Record
	closed  bool
}

func newBuffered(w io.Writer, opts Options, render renderFunc) *buffered {
	opts.Location = opts.location()

	return &buffered{w: w, opts: opts, render: render}
}

func (b *buffered) Write(rec Record) error {
	if b.closed {
		return ErrClosed
	}

	b.records = append(b.records, rec)

	return nil
}

func (b *buffered) Close() error {
	if b.closed {
		return nil
	}

	b.closed = true

	return b.render(b.w, b.records, b.opts)
}
