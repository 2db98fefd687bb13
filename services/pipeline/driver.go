package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"stock_etl_project/models"
	"stock_etl_project/services"
	"stock_etl_project/services/analysis"
	"stock_etl_project/services/loader"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Task names exposed to the scheduler and the API. compute_features
// only runs after ensure_raw_loaded has succeeded.
const (
	TaskEnsureRawLoaded = "ensure_raw_loaded"
	TaskComputeFeatures = "compute_features"
)

// StoreUnavailableError marks a raw or feature store read/write
// failure. It is transient by contract: the driver retries it, and
// whatever triggered the run may retry the whole task from scratch.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// Driver runs the two pipeline tasks. All tasks are idempotent, so an
// external retry of a failed run is always safe.
type Driver struct {
	db         *gorm.DB
	loader     *loader.Loader
	dataDir    string
	maxRetries int
	retryDelay time.Duration

	// serializes runs so a cron run and an API-triggered run cannot
	// interleave writes for the same symbol
	mu sync.Mutex
}

// NewDriver creates a new pipeline driver
func NewDriver(db *gorm.DB, dataDir string) *Driver {
	return &Driver{
		db:         db,
		loader:     loader.NewLoader(db),
		dataDir:    dataDir,
		maxRetries: 3,
		retryDelay: 5 * time.Second,
	}
}

// EnsureRawLoaded ingests every CSV in the data directory into the
// raw store. Re-runs upsert on (stock_id, date), so the task is
// idempotent.
func (d *Driver) EnsureRawLoaded() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	run := d.startRun(TaskEnsureRawLoaded)
	log.Printf("Task %s: loading CSV files from %s", TaskEnsureRawLoaded, d.dataDir)

	var rows int
	err := d.withRetry(func() error {
		var loadErr error
		rows, loadErr = d.loader.LoadDir(d.dataDir)
		return ingestError(loadErr)
	})

	d.finishRun(run, 0, rows, err)
	return err
}

// ComputeFeatures recomputes the feature store from the raw store,
// one symbol at a time. Each symbol's rows are upserted inside a
// single transaction. Validation failures (bad raw data) fail the
// task run instead of being skipped silently; the remaining symbols
// are still processed first so one bad file does not hide the state
// of the others.
func (d *Driver) ComputeFeatures() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	run := d.startRun(TaskComputeFeatures)

	var stocks []models.Stock
	err := d.withRetry(func() error {
		if err := d.db.Where("status = ?", "active").Order("symbol").Find(&stocks).Error; err != nil {
			return &StoreUnavailableError{Op: "load stocks", Err: err}
		}
		return nil
	})
	if err != nil {
		d.finishRun(run, 0, 0, err)
		return err
	}

	var firstErr error
	symbols := 0
	rows := 0
	for _, stock := range stocks {
		n, err := d.computeSymbol(stock)
		if err != nil {
			log.Printf("Task %s: %s failed: %v", TaskComputeFeatures, stock.Symbol, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", stock.Symbol, err)
			}
			continue
		}
		if n > 0 {
			symbols++
			rows += n
		}
	}

	if firstErr == nil {
		d.exportLatest(stocks)
	}

	d.finishRun(run, symbols, rows, firstErr)
	return firstErr
}

// RunPipeline runs both tasks in dependency order: compute_features
// only starts once ensure_raw_loaded has succeeded.
func (d *Driver) RunPipeline() error {
	if err := d.EnsureRawLoaded(); err != nil {
		return fmt.Errorf("%s failed, skipping %s: %w", TaskEnsureRawLoaded, TaskComputeFeatures, err)
	}
	return d.ComputeFeatures()
}

// computeSymbol reads one symbol's full raw history, transforms it
// and upserts the result. Returns the number of feature rows written.
func (d *Driver) computeSymbol(stock models.Stock) (int, error) {
	var raw []models.RawBar
	err := d.withRetry(func() error {
		raw = raw[:0]
		if err := d.db.Where("stock_id = ?", stock.ID).Order("date ASC").Find(&raw).Error; err != nil {
			return &StoreUnavailableError{Op: "read raw bars", Err: err}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(raw) == 0 {
		log.Printf("Task %s: no raw data for %s, skipping", TaskComputeFeatures, stock.Symbol)
		return 0, nil
	}

	features, err := analysis.Transform(raw)
	if err != nil {
		return 0, err
	}

	err = d.withRetry(func() error {
		if err := d.upsertFeatures(stock.ID, features); err != nil {
			return &StoreUnavailableError{Op: "upsert features", Err: err}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(features), nil
}

// upsertFeatures replaces a symbol's feature rows inside one
// transaction, the unit of atomicity per symbol.
func (d *Driver) upsertFeatures(stockID uint, features []models.FeatureBar) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		for i := range features {
			row := features[i]

			var existing models.FeatureBar
			err := tx.Where("stock_id = ? AND date = ?", stockID, row.Date).First(&existing).Error
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

// ingestError classifies a loader failure. Malformed CSV content is
// permanent and propagates as-is so it fails the run immediately;
// everything else (filesystem, database) counts as a store failure
// and gets retried.
func ingestError(err error) error {
	if err == nil {
		return nil
	}
	var dataErr *loader.DataError
	if errors.As(err, &dataErr) {
		return err
	}
	return &StoreUnavailableError{Op: "raw ingestion", Err: err}
}

// withRetry retries store failures with a fixed delay. Validation
// errors and other non-store failures propagate immediately.
func (d *Driver) withRetry(fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		var storeErr *StoreUnavailableError
		if err == nil || !errors.As(err, &storeErr) || attempt > d.maxRetries {
			return err
		}
		log.Printf("Store error (attempt %d/%d), retrying in %v: %v", attempt, d.maxRetries, d.retryDelay, err)
		time.Sleep(d.retryDelay)
	}
}

// exportLatest pushes the newest feature row per symbol into the
// local snapshot store and, when configured, MongoDB. Export failures
// are logged but do not fail the run: the feature store in Postgres
// is already consistent at this point.
func (d *Driver) exportLatest(stocks []models.Stock) {
	var snapshot []services.LatestFeature
	var summaries []services.FeatureSummary

	for _, stock := range stocks {
		var last models.FeatureBar
		err := d.db.Where("stock_id = ?", stock.ID).Order("date DESC").First(&last).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			log.Printf("Snapshot export: failed to read latest features for %s: %v", stock.Symbol, err)
			return
		}

		var barCount int64
		d.db.Model(&models.FeatureBar{}).Where("stock_id = ?", stock.ID).Count(&barCount)

		closeValue, _ := last.Close.Float64()
		date := last.Date.Format("2006-01-02")

		snapshot = append(snapshot, services.LatestFeature{
			Symbol:       stock.Symbol,
			Date:         date,
			Close:        closeValue,
			SMA10:        decimalPtrToFloat(last.SMA10),
			SMA50:        decimalPtrToFloat(last.SMA50),
			RSI14:        decimalPtrToFloat(last.RSI14),
			DailyReturn:  decimalPtrToFloat(last.DailyReturn),
			Volatility30: decimalPtrToFloat(last.Volatility30),
		})
		summaries = append(summaries, services.FeatureSummary{
			Symbol:       stock.Symbol,
			UpdatedAt:    time.Now().UTC(),
			BarCount:     int(barCount),
			LastDate:     date,
			LastClose:    closeValue,
			SMA10:        decimalPtrToFloat(last.SMA10),
			SMA50:        decimalPtrToFloat(last.SMA50),
			RSI14:        decimalPtrToFloat(last.RSI14),
			DailyReturn:  decimalPtrToFloat(last.DailyReturn),
			Volatility30: decimalPtrToFloat(last.Volatility30),
		})
	}

	if services.GlobalSnapshot != nil {
		if err := services.GlobalSnapshot.ReplaceLatest(snapshot); err != nil {
			log.Printf("Snapshot export failed: %v", err)
		}
	}

	if services.GlobalMongoExporter.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := services.GlobalMongoExporter.SaveFeatureSummaries(ctx, summaries); err != nil {
			log.Printf("MongoDB export failed: %v", err)
		}
	}
}

func decimalPtrToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}

// startRun records the beginning of a task run
func (d *Driver) startRun(task string) *models.PipelineRun {
	run := &models.PipelineRun{
		Task:      task,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := d.db.Create(run).Error; err != nil {
		log.Printf("Failed to record run start for %s: %v", task, err)
		return nil
	}
	return run
}

// finishRun records the outcome of a task run
func (d *Driver) finishRun(run *models.PipelineRun, symbols, rows int, runErr error) {
	if run == nil {
		return
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Symbols = symbols
	run.Rows = rows
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = models.RunStatusSuccess
	}

	if err := d.db.Save(run).Error; err != nil {
		log.Printf("Failed to record run result for %s: %v", run.Task, err)
		return
	}

	log.Printf("Task %s finished: status=%s symbols=%d rows=%d", run.Task, run.Status, symbols, rows)
}
