package domain

import "time"

// FetchTrigger names what started a fetch cycle.
type FetchTrigger string

const (
	TriggerScheduled FetchTrigger = "scheduled"
	TriggerManual    FetchTrigger = "manual"
	TriggerStartup   FetchTrigger = "startup"
)

// SourceReport counts what happened to one source during a cycle.
type SourceReport struct {
	Fetched          int    `json:"fetched"`
	Inserted         int    `json:"inserted"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	Failed           bool   `json:"failed"`
	ErrorReason      string `json:"error_reason,omitempty"`
}

// FetchReport is the outcome of one fetch cycle.
type FetchReport struct {
	RunID          string                  `json:"run_id,omitempty"`
	Trigger        FetchTrigger            `json:"trigger"`
	AlreadyRunning bool                    `json:"already_running"`
	PerSource      map[string]SourceReport `json:"per_source"`
	TotalInserted  int                     `json:"total_inserted"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
}

// FailedSources lists the sources that failed during the cycle.
func (r FetchReport) FailedSources() []string {
	var out []string
	for name, sr := range r.PerSource {
		if sr.Failed {
			out = append(out, name)
		}
	}
	return out
}

// FetchInfo records when the last cycles of each kind completed.
type FetchInfo struct {
	LastScheduled *time.Time   `json:"last_scheduled,omitempty"`
	LastManual    *time.Time   `json:"last_manual,omitempty"`
	LastReport    *FetchReport `json:"last_report,omitempty"`
}
