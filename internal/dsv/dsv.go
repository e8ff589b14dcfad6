// Package dsv reads delimiter-separated value files.
//
// A Source is opened once (the header is read eagerly) and can be streamed
// multiple times, so callers can make one pass to load and later passes to
// verify. Row handling is best-effort: short rows are padded, long rows
// truncated, and unreadable rows are reported through a callback and
// skipped, never fatal.
package dsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"dataprof/internal/lake"
)

// Options control parsing. Start from DefaultOptions; the zero value means
// a headerless, comma-separated UTF-8 file with no trimming.
type Options struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// Strip trims surrounding whitespace from every field.
	Strip bool
	// Bookend is the quote character to strip from field edges when
	// BookendStrip is set. Zero means '"'.
	Bookend rune
	// BookendStrip strips matching Bookend pairs from field edges.
	BookendStrip bool
	// Encoding is an IANA charset name. Empty or "utf-8" reads bytes as-is.
	Encoding string
	// SkipHeaderRows discards rows before the header block.
	SkipHeaderRows int
	// SkipFooterRows discards trailing rows.
	SkipFooterRows int
	// HeaderRows is the number of header rows; multi-row headers merge
	// cell-wise with '_'. Zero means headerless, column names are
	// synthesized.
	HeaderRows int
	// SkipEmptyRows drops rows whose fields are all empty.
	SkipEmptyRows bool
}

// DefaultOptions matches the common case: comma-separated, one header row,
// double-quote bookends, whitespace trimming, UTF-8.
func DefaultOptions() Options {
	return Options{
		Delimiter:     ',',
		Strip:         true,
		Bookend:       '"',
		BookendStrip:  true,
		Encoding:      "utf-8",
		HeaderRows:    1,
		SkipEmptyRows: true,
	}
}

// Source is an opened DSV file with resolved column names.
type Source struct {
	path    string
	opt     Options
	columns []string
	header  []string
}

// Open resolves the source's column names by reading its header block.
// Headerless files get synthesized names sized to the first data row.
func Open(path string, opt Options) (*Source, error) {
	s := &Source{path: path, opt: opt}

	f, dec, err := s.openReader()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := s.newCSVReader(dec)

	for i := 0; i < opt.SkipHeaderRows; i++ {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("skip header rows: %w", err)
		}
	}

	var raw []string
	if opt.HeaderRows > 0 {
		raw, err = s.readHeaderBlock(cr)
	} else {
		raw, err = s.peekWidth(cr)
	}
	if err != nil {
		return nil, err
	}
	s.header = raw

	norm := make([]string, len(raw))
	for i, h := range raw {
		norm[i] = lake.NormalizeIdent(h)
	}
	s.columns = lake.UniqueIdents(norm)
	return s, nil
}

// Columns returns the normalized, unique column names in file order.
func (s *Source) Columns() []string { return s.columns }

// Header returns the raw header cells before normalization. Empty for
// headerless files.
func (s *Source) Header() []string {
	if s.opt.HeaderRows == 0 {
		return nil
	}
	return s.header
}

// Name returns a normalized table name derived from the file name.
func (s *Source) Name() string {
	base := filepath.Base(s.path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return lake.NormalizeIdent(base)
}

// Rows streams every data row in file order. Each callback receives fields
// aligned to Columns: short rows padded with "", long rows truncated.
// Unparseable rows are reported to onErr (line number and error) and
// skipped. Footer rows are withheld per Options.SkipFooterRows.
func (s *Source) Rows(ctx context.Context, fn func(values []string) error, onErr func(line int, err error)) error {
	f, dec, err := s.openReader()
	if err != nil {
		return err
	}
	defer f.Close()

	cr := s.newCSVReader(dec)
	line := 0

	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	skip := s.opt.SkipHeaderRows + s.opt.HeaderRows
	for i := 0; i < skip; i++ {
		if _, err := readRec(); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("skip header: %w", err)
		}
	}

	// Footer rows are dropped by delaying emission behind a ring buffer.
	var ring [][]string
	ringAt := 0

	emit := func(rec []string) error {
		if s.opt.SkipFooterRows <= 0 {
			return fn(rec)
		}
		if len(ring) < s.opt.SkipFooterRows {
			ring = append(ring, rec)
			return nil
		}
		out := ring[ringAt]
		ring[ringAt] = rec
		ringAt = (ringAt + 1) % len(ring)
		return fn(out)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := readRec()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if onErr != nil {
				onErr(line, fmt.Errorf("read row: %w", err))
			}
			continue
		}

		row := s.alignRow(rec)
		if s.opt.SkipEmptyRows && allEmpty(row) {
			continue
		}
		if err := emit(row); err != nil {
			return err
		}
	}
}

func (s *Source) openReader() (*os.File, io.Reader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, err
	}

	var r io.Reader = f
	name := strings.ToLower(strings.TrimSpace(s.opt.Encoding))
	if name != "" && name != "utf-8" && name != "utf8" {
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("unknown encoding %q", s.opt.Encoding)
		}
		r = transform.NewReader(f, enc.NewDecoder())
	}
	return f, r, nil
}

func (s *Source) newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = s.delimiter()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return cr
}

func (s *Source) delimiter() rune {
	if s.opt.Delimiter == 0 {
		return ','
	}
	return s.opt.Delimiter
}

func (s *Source) bookend() rune {
	if s.opt.Bookend == 0 {
		return '"'
	}
	return s.opt.Bookend
}

// readHeaderBlock reads HeaderRows rows and merges them cell-wise with '_'.
func (s *Source) readHeaderBlock(cr *csv.Reader) ([]string, error) {
	var merged []string
	for i := 0; i < s.opt.HeaderRows; i++ {
		rec, err := cr.Read()
		if err != nil {
			if err == io.EOF && i > 0 {
				break
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		if i == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\uFEFF")
		}
		for j, cell := range rec {
			cell = s.cleanField(cell)
			if j >= len(merged) {
				merged = append(merged, cell)
				continue
			}
			if cell == "" {
				continue
			}
			if merged[j] == "" {
				merged[j] = cell
			} else {
				merged[j] = merged[j] + "_" + cell
			}
		}
	}
	return merged, nil
}

// peekWidth sizes a headerless file from its first data row.
func (s *Source) peekWidth(cr *csv.Reader) ([]string, error) {
	rec, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read first row: %w", err)
	}
	return make([]string, len(rec)), nil
}

func (s *Source) alignRow(rec []string) []string {
	out := make([]string, len(s.columns))
	for i := range out {
		if i < len(rec) {
			out[i] = s.cleanField(rec[i])
		}
	}
	return out
}

func (s *Source) cleanField(v string) string {
	if s.opt.Strip {
		v = strings.TrimSpace(v)
	}
	if s.opt.BookendStrip {
		b := string(s.bookend())
		if len(v) >= 2*len(b) && strings.HasPrefix(v, b) && strings.HasSuffix(v, b) {
			v = v[len(b) : len(v)-len(b)]
		}
		if s.opt.Strip {
			v = strings.TrimSpace(v)
		}
	}
	return v
}

func allEmpty(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
