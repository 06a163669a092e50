package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
}

func TestStreamCSV_WithHeader(t *testing.T) {
	input := "name,volume\nshoes,1200\nboots,400\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"name", "volume"}, <-headerCh)
	assert.Equal(t, []string{"shoes", "1200"}, rows[0])
}

func TestStreamCSV_UTF8BOM(t *testing.T) {
	input := "\uFEFFa,b\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0], "BOM must not leak into the first cell")
}

func TestStreamCSV_UTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.String(enc, "Keyword,Volume\nrunning shoes,880\n")
	require.NoError(t, err)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(encoded), CSVOptions{})
	rows, readErr := collectRows(t, rowCh, errCh)
	require.NoError(t, readErr)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Keyword", "Volume"}, rows[0])
	assert.Equal(t, []string{"running shoes", "880"}, rows[1])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " a , b \n 1 , 2 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{TrimSpace: true})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestStreamCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	assert.Error(t, err)
}

func TestColumnIndex(t *testing.T) {
	t.Parallel()

	header := []string{"Address", "Title 1", "Meta Description 1"}
	assert.Equal(t, 0, columnIndex(header, "Address", "URL"))
	assert.Equal(t, 0, columnIndex(header, "URL", "Address"), "candidates tried in order, any match wins")
	assert.Equal(t, 1, columnIndex(header, "title 1"), "case-insensitive")
	assert.Equal(t, -1, columnIndex(header, "H1-1"))
}

func TestCell(t *testing.T) {
	t.Parallel()

	row := []string{"x", " y "}
	assert.Equal(t, "x", cell(row, 0))
	assert.Equal(t, "y", cell(row, 1))
	assert.Empty(t, cell(row, 2), "short row")
	assert.Empty(t, cell(row, -1), "unresolved column")
}
