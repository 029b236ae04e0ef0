package domain

import "time"

// ManifestEntry records the outcome of one logical unit of a render pass.
type ManifestEntry struct {
	Unit      string   `json:"unit"`
	Artifacts []string `json:"artifacts,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

// OK reports whether the unit succeeded.
func (e ManifestEntry) OK() bool { return e.Error == "" }

// RunManifest is the final report of a render pass: every unit listed with
// its outcome, never a silent partial output.
type RunManifest struct {
	RunID       string          `json:"run_id"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Entries     []ManifestEntry `json:"entries"`
}

// Succeed appends a success entry.
func (m *RunManifest) Succeed(unit string, artifacts ...string) {
	m.Entries = append(m.Entries, ManifestEntry{Unit: unit, Artifacts: artifacts})
}

// Fail appends a failure entry tagged with the error kind.
func (m *RunManifest) Fail(unit string, err error) {
	m.Entries = append(m.Entries, ManifestEntry{
		Unit:      unit,
		Error:     err.Error(),
		ErrorKind: ErrorKind(err),
	})
}

// Counts returns the number of succeeded and failed units.
func (m *RunManifest) Counts() (succeeded, failed int) {
	for _, e := range m.Entries {
		if e.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
