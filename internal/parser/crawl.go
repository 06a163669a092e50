package parser

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// CrawlRow is one normalized page from a site crawl export
// (Screaming Frog internal pages).
type CrawlRow struct {
	URL             string `json:"url"`
	Title           string `json:"title,omitempty"`
	MetaDescription string `json:"meta,omitempty"`
	H1              string `json:"h1,omitempty"`
	Canonical       string `json:"canonical,omitempty"`
	Schema          string `json:"schema,omitempty"`
	StatusCode      int    `json:"code,omitempty"`
	MissingAltCount int    `json:"img_alt_count,omitempty"`
}

// crawlColumns maps each CrawlRow field to its candidate export headers,
// newest export format first.
type crawlColumns struct {
	url, title, meta, h1, canonical, schema, code, alt int
}

func resolveCrawlColumns(header []string) (crawlColumns, error) {
	cols := crawlColumns{
		url:       columnIndex(header, "Address", "URL", "url"),
		title:     columnIndex(header, "Title 1", "Title", "title"),
		meta:      columnIndex(header, "Meta Description 1", "Meta Description", "meta_description"),
		h1:        columnIndex(header, "H1-1", "H1", "h1"),
		canonical: columnIndex(header, "Canonical Link Element 1", "Canonical", "canonical"),
		schema:    columnIndex(header, "Schema.org Type", "Schema", "schema"),
		code:      columnIndex(header, "Status Code", "Status", "status_code"),
		alt:       columnIndex(header, "Images Missing Alt Text", "Images Missing Alt"),
	}
	if cols.url < 0 {
		return cols, eris.Errorf("crawl export: no URL column in header %v", header)
	}
	return cols, nil
}

func (c crawlColumns) row(record []string) CrawlRow {
	code, _ := strconv.Atoi(cell(record, c.code))
	alt, _ := strconv.Atoi(cell(record, c.alt))
	return CrawlRow{
		URL:             cell(record, c.url),
		Title:           cell(record, c.title),
		MetaDescription: cell(record, c.meta),
		H1:              cell(record, c.h1),
		Canonical:       cell(record, c.canonical),
		Schema:          cell(record, c.schema),
		StatusCode:      code,
		MissingAltCount: alt,
	}
}

// ParseCrawl reads a crawl export (CSV or XLSX) into normalized rows. Rows
// without a URL are dropped.
func ParseCrawl(ctx context.Context, path string) ([]CrawlRow, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return parseCrawlCSV(ctx, path)
	case ".xls", ".xlsx":
		return parseCrawlXLSX(path)
	default:
		return nil, eris.Errorf("crawl export: unsupported file format %q (use CSV or Excel)", ext)
	}
}

func parseCrawlCSV(ctx context.Context, path string) ([]CrawlRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "crawl export: open")
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
		cols    crawlColumns
		colsErr error
		haveCol bool
		rows    []CrawlRow
	)
	for record := range rowCh {
		if !haveCol {
			select {
			case header := <-headerCh:
				cols, colsErr = resolveCrawlColumns(header)
				haveCol = true
			default:
				return nil, eris.New("crawl export: missing header row")
			}
			if colsErr != nil {
				return nil, colsErr
			}
		}
		row := cols.row(record)
		if row.URL == "" {
			continue
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "crawl export: read")
	}

	// header resolves even when the file has no data rows
	if !haveCol {
		select {
		case header := <-headerCh:
			if _, err := resolveCrawlColumns(header); err != nil {
				return nil, err
			}
		default:
		}
	}

	return rows, nil
}

func parseCrawlXLSX(path string) ([]CrawlRow, error) {
	records, err := readXLSX(path)
	if err != nil {
		return nil, eris.Wrap(err, "crawl export: read xlsx")
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols, err := resolveCrawlColumns(records[0])
	if err != nil {
		return nil, err
	}

	var rows []CrawlRow
	for _, record := range records[1:] {
		row := cols.row(record)
		if row.URL == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
