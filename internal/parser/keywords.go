package parser

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// KeywordRow is one normalized keyword from an organic keywords export
// (Ahrefs or similar).
type KeywordRow struct {
	Keyword  string `json:"keyword"`
	Volume   int    `json:"volume"`
	Position int    `json:"rank"`
	URL      string `json:"url,omitempty"`
}

type keywordColumns struct {
	keyword, volume, position, url int
}

func resolveKeywordColumns(header []string) (keywordColumns, error) {
	cols := keywordColumns{
		keyword:  columnIndex(header, "Keyword", "Query", "keyword"),
		volume:   columnIndex(header, "Search Volume", "Volume", "search_volume"),
		position: columnIndex(header, "Position", "Current position", "Rank", "position"),
		url:      columnIndex(header, "URL", "Page", "Current URL", "url"),
	}
	if cols.keyword < 0 {
		return cols, eris.Errorf("keyword export: no keyword column in header %v", header)
	}
	return cols, nil
}

func (c keywordColumns) row(record []string) KeywordRow {
	volume, _ := strconv.Atoi(cell(record, c.volume))
	pos, _ := strconv.Atoi(cell(record, c.position))
	return KeywordRow{
		Keyword:  cell(record, c.keyword),
		Volume:   volume,
		Position: pos,
		URL:      cell(record, c.url),
	}
}

// ParseKeywords reads an organic keywords export (CSV or XLSX) into
// normalized rows. Rows without a keyword are dropped.
func ParseKeywords(ctx context.Context, path string) ([]KeywordRow, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return parseKeywordsCSV(ctx, path)
	case ".xls", ".xlsx":
		return parseKeywordsXLSX(path)
	default:
		return nil, eris.Errorf("keyword export: unsupported file format %q (use CSV or Excel)", ext)
	}
}

func parseKeywordsCSV(ctx context.Context, path string) ([]KeywordRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "keyword export: open")
	}
	defer f.Close()

	// Cancel on every return path so the StreamCSV producer is released
	// even when this side bails out mid-stream.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var (
		cols    keywordColumns
		haveCol bool
		rows    []KeywordRow
	)
	for record := range rowCh {
		if !haveCol {
			select {
			case header := <-headerCh:
				var colsErr error
				cols, colsErr = resolveKeywordColumns(header)
				if colsErr != nil {
					return nil, colsErr
				}
				haveCol = true
			default:
				return nil, eris.New("keyword export: missing header row")
			}
		}
		row := cols.row(record)
		if row.Keyword == "" {
			continue
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "keyword export: read")
	}

	return rows, nil
}

func parseKeywordsXLSX(path string) ([]KeywordRow, error) {
	records, err := readXLSX(path)
	if err != nil {
		return nil, eris.Wrap(err, "keyword export: read xlsx")
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := resolveKeywordColumns(records[0])
	if err != nil {
		return nil, err
	}

	var rows []KeywordRow
	for _, record := range records[1:] {
		row := cols.row(record)
		if row.Keyword == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
