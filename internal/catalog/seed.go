package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
)

type seedRow struct {
	Domain string `csv:"domain,omitempty"`
	Name   string `csv:"name"`
}

// sniffComma picks ';' or ',' from the header line.
func sniffComma(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// Seed stages every name of a CSV export and flushes it. The file needs a
// "name" column; a "domain" column overrides d per row.
func (c *Catalog) Seed(ctx context.Context, r io.Reader, d Domain) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffComma(data)
	reader.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed header: %w", err)
	}

	var rows []seedRow
	if err := dec.Decode(&rows); err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to decode seed rows: %w", err)
	}

	for i, row := range rows {
		domain := d
		if row.Domain != "" {
			domain = Domain(strings.ToLower(strings.TrimSpace(row.Domain)))
		}
		if !domain.Valid() {
			return 0, fmt.Errorf("seed row %d: unknown domain %q", i+2, row.Domain)
		}
		c.Resolve(row.Name, domain)
	}
	return c.Flush(ctx)
}
