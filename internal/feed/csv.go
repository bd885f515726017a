package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvRecords iterates a header-named CSV stream.
type csvRecords struct {
	r      *csv.Reader
	header map[string]int
}

func newCSVRecords(r io.Reader, required ...string) (*csvRecords, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	header := make(map[string]int, len(head))
	for i, name := range head {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		header[name] = i
	}
	for _, name := range required {
		if _, ok := header[name]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", name)
		}
	}

	return &csvRecords{r: cr, header: header}, nil
}

// next returns the next record, io.EOF at the end, or ErrMalformedRecord
// for a line the csv reader rejects.
func (c *csvRecords) next() ([]string, error) {
	rec, err := c.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, perr)
		}
		return nil, err
	}
	return rec, nil
}

func (c *csvRecords) has(name string) bool {
	_, ok := c.header[name]
	return ok
}

// get returns the named field or "" when the column or field is absent.
func (c *csvRecords) get(rec []string, name string) string {
	i, ok := c.header[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}
