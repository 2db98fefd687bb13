package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSymbolFromFilename(t *testing.T) {
	cases := map[string]string{
		"stock_data/aapl_ns_enriched.csv": "AAPL",
		"msft.csv":                        "MSFT",
		"/data/tsla_NS_ENRICHED.csv":      "TSLA",
		"vnm.CSV":                         "VNM",
	}
	for path, want := range cases {
		if got := SymbolFromFilename(path); got != want {
			t.Fatalf("SymbolFromFilename(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestNormalizeColumn(t *testing.T) {
	cases := map[string]string{
		" Date ":     "date",
		"Adj. Close": "adj_close",
		"CLOSE":      "close",
		"Volume":     "volume",
	}
	for in, want := range cases {
		if got := NormalizeColumn(in); got != want {
			t.Fatalf("NormalizeColumn(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	input := "Date, Open, High, Low, Close, Volume\n" +
		"2024-01-02,10.5,11.0,10.1,10.8,1200\n" +
		"2024-01-03,10.8,11.2,10.6,11.0,900\n"

	bars, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	if bars[0].Date.Format("2006-01-02") != "2024-01-02" {
		t.Fatalf("unexpected date %v", bars[0].Date)
	}
	if !bars[0].Close.Equal(decimal.NewFromFloat(10.8)) {
		t.Fatalf("unexpected close %s", bars[0].Close)
	}
	if bars[1].Volume != 900 {
		t.Fatalf("unexpected volume %d", bars[1].Volume)
	}
}

func TestParseCSVSkipsBadRows(t *testing.T) {
	input := "date,open,high,low,close,volume\n" +
		"not-a-date,10,10,10,10,100\n" +
		"2024-01-03,10,10,10,abc,100\n" +
		"2024-01-04,10,11,9,10.5,250\n"

	bars, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(bars))
	}
	if bars[0].Volume != 250 {
		t.Fatalf("unexpected volume %d", bars[0].Volume)
	}
}

func TestParseCSVMissingColumn(t *testing.T) {
	input := "date,open,close\n2024-01-02,10,10.5\n"
	if _, err := ParseCSV(strings.NewReader(input)); err == nil {
		t.Fatalf("expected error for missing columns")
	}
}

func TestLoadFileMalformedCSVIsDataError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aapl.csv")
	content := "date,open,close\n2024-01-02,10,10.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// parse fails before any database access
	_, err := NewLoader(nil).LoadFile(path)

	var dataErr *DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if dataErr.File != "aapl.csv" {
		t.Fatalf("unexpected file %q", dataErr.File)
	}
}

func TestParseCSVFloatVolume(t *testing.T) {
	input := "date,open,high,low,close,volume\n" +
		"2024-01-02,10,10,10,10,1200.0\n"

	bars, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if bars[0].Volume != 1200 {
		t.Fatalf("unexpected volume %d", bars[0].Volume)
	}
}
