package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

// Compile-time interface satisfaction check.
var _ Source = (*CSVSource)(nil)

// CSVSource reads a listing-status CSV file. The expected header is the
// exchange listing feed format: symbol, name, exchange, assetType, ipoDate,
// delistingDate, status. Column order is taken from the header row.
type CSVSource struct {
	Path string
}

func (s *CSVSource) List(_ context.Context) ([]types.Symbol, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("registry: open listing: %w", err)
	}
	defer f.Close()

	syms, err := ParseListing(f)
	if err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", s.Path, err)
	}
	return syms, nil
}

// ParseListing decodes a listing-status CSV stream into symbols.
func ParseListing(r io.Reader) ([]types.Symbol, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	symIdx, ok := cols["symbol"]
	if !ok {
		return nil, fmt.Errorf("listing header missing symbol column")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []types.Symbol
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ticker := strings.TrimSpace(row[symIdx])
		if ticker == "" {
			continue
		}

		sym := types.Symbol{
			Symbol:    ticker,
			Exchange:  field(row, "exchange"),
			AssetType: field(row, "assettype"),
			Status:    types.SymbolActive,
		}
		if strings.EqualFold(field(row, "status"), string(types.SymbolDelisted)) {
			sym.Status = types.SymbolDelisted
		}
		if raw := field(row, "delistingdate"); raw != "" && !strings.EqualFold(raw, "null") {
			d, err := time.Parse(types.DateLayout, raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: delisting date %q: %w", line, raw, err)
			}
			sym.DelistingDate = &d
		}
		out = append(out, sym)
	}
	return out, nil
}
