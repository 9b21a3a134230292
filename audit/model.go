// audit/model.go
package audit

import "time"

// Entry records one reconciliation action applied to the remote directory.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Consumer  string    `json:"consumer"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	SubjectID string    `json:"subject_id,omitempty"`
	Succeeded bool      `json:"succeeded"`
	Detail    string    `json:"detail,omitempty"`
}
