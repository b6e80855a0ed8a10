package engine

import (
	"time"

	"db-shuttle/internal/database"
)

// Reporter receives status notifications from the pipeline. Implementations
// render them; the pipeline never writes to the console itself.
type Reporter interface {
	Connected(role string, desc database.Descriptor)
	DatabaseCreated(name string)
	TablePresence(table string, exists bool)
	TableCreated(result CreateResult)
	TableStarted(table string, expectedRows int64)
	RowsCopied(table string, copied int64)
	TableFinished(result TableResult)
}

// NopReporter discards every notification.
type NopReporter struct{}

func (NopReporter) Connected(string, database.Descriptor) {}
func (NopReporter) DatabaseCreated(string)                {}
func (NopReporter) TablePresence(string, bool)            {}
func (NopReporter) TableCreated(CreateResult)             {}
func (NopReporter) TableStarted(string, int64)            {}
func (NopReporter) RowsCopied(string, int64)              {}
func (NopReporter) TableFinished(TableResult)             {}

// CreateResult is the outcome of replaying one table's DDL on the destination.
type CreateResult struct {
	Table   string
	Created bool
	Skipped bool // table already existed on the destination
	Err     error
}

// TableResult is the outcome of copying one table.
type TableResult struct {
	Table      string
	Columns    []string
	Expected   int64 // source rows counted before the copy, -1 if not counted
	Copied     int64
	DestBefore int64
	Duration   time.Duration
	Err        error

	// Filled by VerifyCounts.
	SourceRows int64
	DestAfter  int64
	Verified   bool
	VerifyErr  error
}

const (
	StatusOK       = "OK"
	StatusFailed   = "FAILED"
	StatusVerified = "OK (Verified)"
	StatusMismatch = "COUNT MISMATCH"
)

// Status summarizes the result for reports.
func (r TableResult) Status() string {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.VerifyErr != nil:
		return StatusMismatch
	case r.Verified:
		return StatusVerified
	default:
		return StatusOK
	}
}

// Report collects everything a pipeline run did.
type Report struct {
	DatabaseCreated bool
	Missing         []string
	Created         []CreateResult
	Skipped         []string // selected but not transferred
	Results         []TableResult
}

// Failed counts tables that were selected but did not copy cleanly.
func (r *Report) Failed() int {
	n := len(r.Skipped)
	for _, res := range r.Results {
		if res.Err != nil || res.VerifyErr != nil {
			n++
		}
	}
	return n
}
