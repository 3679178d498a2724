package runtime

import (
	jsoniter "github.com/json-iterator/go"
)

// Status is a point-in-time snapshot of one Manager's engine, marshaled the
// way the teacher's stats.BaseXactStats/ExtRebalanceStats dump rebalance
// counters to JSON for status queries and trace logging (reb/bcast.go,
// reb/global.go).
type Status struct {
	PendingRequests int `json:"pending_requests,string"`
	ReadyTasks      int `json:"ready_tasks,string"`
}

// NewStatus snapshots m's engine queues.
func NewStatus(m *Manager) *Status {
	return &Status{
		PendingRequests: m.engine.Requests().Len(),
		ReadyTasks:      m.engine.Tasks().Len(),
	}
}

// DebugJSON renders s the way reb/global.go's jsoniter.MarshalIndent dumps
// StatsDelta for trace-level logging.
func (s *Status) DebugJSON() (string, error) {
	b, err := jsoniter.MarshalIndent(s, "", " ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
