package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stock_etl_project/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Columns every stock CSV must carry after header normalization
var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// Date layouts accepted in the date column, tried in order
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"01/02/2006",
}

// DataError marks a CSV file whose content is malformed: a missing
// required column or an unreadable record. It is permanent — a retry
// of ingestion cannot fix it, unlike an I/O or store failure.
type DataError struct {
	File string
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad data in %s: %v", e.File, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// CSVBar is one parsed row of a stock CSV before it is bound to a
// stock record.
type CSVBar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Loader ingests stock CSV files into the raw store
type Loader struct {
	db *gorm.DB
}

// NewLoader creates a new loader instance
func NewLoader(db *gorm.DB) *Loader {
	return &Loader{db: db}
}

// SymbolFromFilename derives the stock symbol from a CSV filename.
// The extension and the export suffix used by the upstream data dump
// are stripped and the rest is uppercased: "aapl_ns_enriched.csv"
// becomes "AAPL".
func SymbolFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimSuffix(strings.ToLower(name), "_ns_enriched")
	return strings.ToUpper(name)
}

// NormalizeColumn normalizes a CSV header name: trimmed, lowercased,
// spaces and dots collapsed the way the raw exports need.
func NormalizeColumn(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, ".", "")
	return name
}

// ParseCSV parses one stock CSV. Header names are normalized before
// matching; rows whose date or close cannot be parsed are skipped
// with a log line rather than failing the whole file. A missing
// required column fails the file.
func ParseCSV(r io.Reader) ([]CSVBar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[NormalizeColumn(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var bars []CSVBar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		date, ok := parseDate(record[columns["date"]])
		if !ok {
			log.Printf("Skipping line %d: unparseable date %q", line, record[columns["date"]])
			continue
		}

		bar := CSVBar{Date: date}
		if bar.Open, ok = parsePrice(record[columns["open"]]); !ok {
			log.Printf("Skipping line %d: bad open value", line)
			continue
		}
		if bar.High, ok = parsePrice(record[columns["high"]]); !ok {
			log.Printf("Skipping line %d: bad high value", line)
			continue
		}
		if bar.Low, ok = parsePrice(record[columns["low"]]); !ok {
			log.Printf("Skipping line %d: bad low value", line)
			continue
		}
		if bar.Close, ok = parsePrice(record[columns["close"]]); !ok {
			log.Printf("Skipping line %d: bad close value", line)
			continue
		}

		volume, ok := parsePrice(record[columns["volume"]])
		if !ok {
			log.Printf("Skipping line %d: bad volume value", line)
			continue
		}
		bar.Volume = volume.IntPart()

		bars = append(bars, bar)
	}

	return bars, nil
}

// parseDate tries the accepted layouts and truncates to a UTC date
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parsePrice(value string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// LoadFile ingests one CSV file into the raw store and returns the
// number of rows upserted.
func (l *Loader) LoadFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	bars, err := ParseCSV(file)
	if err != nil {
		return 0, &DataError{File: filepath.Base(path), Err: err}
	}
	if len(bars) == 0 {
		log.Printf("No valid rows in %s, skipping", path)
		return 0, nil
	}

	symbol := SymbolFromFilename(path)
	stock, err := l.ensureStock(symbol, filepath.Base(path))
	if err != nil {
		return 0, err
	}

	if err := l.upsertBars(stock.ID, bars); err != nil {
		return 0, err
	}

	return len(bars), nil
}

// LoadDir ingests every CSV file in dir. Returns the total number of
// rows upserted across all files.
func (l *Loader) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}

	total := 0
	files := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		files++

		rows, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return total, err
		}
		total += rows
	}

	if files == 0 {
		log.Printf("No CSV files found in %s", dir)
	} else {
		log.Printf("Loaded %d rows from %d CSV files in %s", total, files, dir)
	}

	return total, nil
}

// ensureStock finds or creates the stock record for a symbol
func (l *Loader) ensureStock(symbol, sourceFile string) (*models.Stock, error) {
	var stock models.Stock
	err := l.db.Where("symbol = ?", symbol).First(&stock).Error
	if err == gorm.ErrRecordNotFound {
		stock = models.Stock{
			Symbol:     symbol,
			SourceFile: sourceFile,
			Status:     "active",
		}
		if err := l.db.Create(&stock).Error; err != nil {
			return nil, fmt.Errorf("failed to create stock %s: %w", symbol, err)
		}
		return &stock, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up stock %s: %w", symbol, err)
	}
	return &stock, nil
}

// upsertBars writes the parsed rows into raw_bars inside one
// transaction, updating rows that already exist for (stock_id, date)
// so that re-running the loader stays idempotent.
func (l *Loader) upsertBars(stockID uint, bars []CSVBar) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		for _, bar := range bars {
			row := models.RawBar{
				StockID: stockID,
				Date:    bar.Date,
				Open:    bar.Open,
				High:    bar.High,
				Low:     bar.Low,
				Close:   bar.Close,
				Volume:  bar.Volume,
			}

			var existing models.RawBar
			err := tx.Where("stock_id = ? AND date = ?", stockID, bar.Date).First(&existing).Error
			if err == gorm.ErrRecordNotFound {
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
