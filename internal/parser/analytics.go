package parser

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ChannelRow is one acquisition channel from a GA4 export.
type ChannelRow struct {
	Channel         string  `json:"channel"`
	Sessions        int     `json:"sessions"`
	BounceRate      float64 `json:"bounce_rate"`       // percent, 0-100
	Conversions     int     `json:"conversions"`
	AvgSessionSecs  float64 `json:"avg_session_secs"`
	PagesPerSession float64 `json:"pages_per_session"`
}

// AnalyticsReport is a normalized GA4 export: site-wide totals plus
// per-channel rows.
type AnalyticsReport struct {
	Sessions        int          `json:"sessions"`
	BounceRate      float64      `json:"bounce_rate"`
	ConversionRate  float64      `json:"conversion_rate"`
	AvgSessionSecs  float64      `json:"avg_session_secs"`
	PagesPerSession float64      `json:"pages_per_session"`
	Channels        []ChannelRow `json:"channels,omitempty"`
}

// ParseAnalytics reads a GA4 export into a normalized report. JSON exports
// are parsed strictly against the report schema; CSV exports are remapped by
// column name. Malformed input fails the parse, it is never repaired.
func ParseAnalytics(ctx context.Context, path string) (*AnalyticsReport, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return parseAnalyticsJSON(path)
	case ".csv":
		return parseAnalyticsCSV(ctx, path)
	default:
		return nil, eris.Errorf("analytics export: unsupported file format %q (use JSON or CSV)", ext)
	}
}

func parseAnalyticsJSON(path string) (*AnalyticsReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "analytics export: read")
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()

	var report AnalyticsReport
	if err := dec.Decode(&report); err != nil {
		return nil, eris.Wrap(err, "analytics export: parse json")
	}

	report.fillTotals()
	return &report, nil
}

type analyticsColumns struct {
	channel, sessions, bounce, conversions, duration, pages int
}

func resolveAnalyticsColumns(header []string) (analyticsColumns, error) {
	cols := analyticsColumns{
		channel:     columnIndex(header, "Session default channel group", "Default channel group", "Channel"),
		sessions:    columnIndex(header, "Sessions", "sessions"),
		bounce:      columnIndex(header, "Bounce rate", "Bounce Rate"),
		conversions: columnIndex(header, "Key events", "Conversions"),
		duration:    columnIndex(header, "Average session duration", "Avg. session duration"),
		pages:       columnIndex(header, "Views per session", "Pages / Session", "Pages per session"),
	}
	if cols.sessions < 0 {
		return cols, eris.Errorf("analytics export: no sessions column in header %v", header)
	}
	return cols, nil
}

func parseAnalyticsCSV(ctx context.Context, path string) (*AnalyticsReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "analytics export: open")
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
		cols    analyticsColumns
		haveCol bool
		report  AnalyticsReport
	)
	for record := range rowCh {
		if !haveCol {
			select {
			case header := <-headerCh:
				var colsErr error
				cols, colsErr = resolveAnalyticsColumns(header)
				if colsErr != nil {
					return nil, colsErr
				}
				haveCol = true
			default:
				return nil, eris.New("analytics export: missing header row")
			}
		}

		sessions, _ := strconv.Atoi(cell(record, cols.sessions))
		conversions, _ := strconv.Atoi(cell(record, cols.conversions))
		report.Channels = append(report.Channels, ChannelRow{
			Channel:         cell(record, cols.channel),
			Sessions:        sessions,
			BounceRate:      parsePercent(cell(record, cols.bounce)),
			Conversions:     conversions,
			AvgSessionSecs:  parseFloat(cell(record, cols.duration)),
			PagesPerSession: parseFloat(cell(record, cols.pages)),
		})
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "analytics export: read")
	}

	report.fillTotals()
	return &report, nil
}

// fillTotals derives site-wide totals from channel rows when the export only
// carries the per-channel breakdown. Rates are session-weighted averages.
func (r *AnalyticsReport) fillTotals() {
	if r.Sessions > 0 || len(r.Channels) == 0 {
		return
	}

	var sessions, conversions int
	var bounce, duration, pages float64
	for _, ch := range r.Channels {
		sessions += ch.Sessions
		conversions += ch.Conversions
		w := float64(ch.Sessions)
		bounce += ch.BounceRate * w
		duration += ch.AvgSessionSecs * w
		pages += ch.PagesPerSession * w
	}
	if sessions == 0 {
		return
	}

	r.Sessions = sessions
	r.BounceRate = bounce / float64(sessions)
	r.AvgSessionSecs = duration / float64(sessions)
	r.PagesPerSession = pages / float64(sessions)
	r.ConversionRate = float64(conversions) / float64(sessions) * 100
}

func parsePercent(s string) float64 {
	return parseFloat(strings.TrimSuffix(s, "%"))
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return f
}
