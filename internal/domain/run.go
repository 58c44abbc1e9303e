package domain

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunRecord describes one invocation of the feature pipeline.
// Corresponds to runs table in the SQLite ledger.
type RunRecord struct {
	RunID            string    // UUID
	StartedAt        time.Time // UTC
	FinishedAt       *time.Time
	Status           RunStatus
	InputFingerprint string // SHA256 over normalized inputs, empty until computed
	PriceRows        int
	VolatilityRows   int
	OutputRows       int
	Error            string // empty on success
}
