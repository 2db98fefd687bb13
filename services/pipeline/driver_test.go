package pipeline

import (
	"errors"
	"testing"

	"stock_etl_project/services/analysis"
	"stock_etl_project/services/loader"
)

func testDriver() *Driver {
	return &Driver{maxRetries: 2, retryDelay: 0}
}

func TestWithRetryRetriesStoreErrors(t *testing.T) {
	d := testDriver()

	calls := 0
	err := d.withRetry(func() error {
		calls++
		return &StoreUnavailableError{Op: "read raw bars", Err: errors.New("connection refused")}
	})

	if calls != d.maxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", d.maxRetries+1, calls)
	}
	var storeErr *StoreUnavailableError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreUnavailableError, got %v", err)
	}
}

func TestWithRetryStopsOnceStoreRecovers(t *testing.T) {
	d := testDriver()

	calls := 0
	err := d.withRetry(func() error {
		calls++
		if calls == 1 {
			return &StoreUnavailableError{Op: "upsert features", Err: errors.New("connection reset")}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after recovery, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestWithRetryDoesNotRetryValidationErrors(t *testing.T) {
	d := testDriver()

	calls := 0
	err := d.withRetry(func() error {
		calls++
		return &analysis.ValidationError{Reason: "duplicate date 2024-01-02"}
	})

	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
	var verr *analysis.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestIngestErrorPassesDataErrorsThrough(t *testing.T) {
	dataErr := &loader.DataError{File: "aapl.csv", Err: errors.New(`missing required column "close"`)}

	err := ingestError(dataErr)

	var got *loader.DataError
	if !errors.As(err, &got) {
		t.Fatalf("expected DataError, got %v", err)
	}
	var storeErr *StoreUnavailableError
	if errors.As(err, &storeErr) {
		t.Fatalf("bad data must not be classified as store unavailable")
	}
}

func TestIngestErrorWrapsStoreFailures(t *testing.T) {
	if err := ingestError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	err := ingestError(errors.New("failed to read data directory"))
	var storeErr *StoreUnavailableError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreUnavailableError, got %v", err)
	}
}
