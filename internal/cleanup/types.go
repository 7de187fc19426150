package cleanup

import "time"

// Log records the outcome of one cleanup pass. Individual step failures
// land in Errors and never abort the pass; Residual counts vendor-named
// files the automatic pass left behind (reported, not escalated).
type Log struct {
	Timestamp    time.Time `json:"timestamp"`
	ContainerID  string    `json:"container_id"`
	Skipped      bool      `json:"skipped"`
	RemovedItems []string  `json:"removed_items"`
	Errors       []string  `json:"errors,omitempty"`
	Residual     int       `json:"residual"`
}
