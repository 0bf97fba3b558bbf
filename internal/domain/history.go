package domain

import "time"

// HistoryEntry is one completed analysis kept in the local history cache.
// Entries are created once on success and never modified afterwards.
type HistoryEntry struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Files     []string       `json:"files"`
	Timestamp int64          `json:"timestamp"`
	Result    AnalysisResult `json:"result"`
}

// CreatedAt converts the epoch-millisecond timestamp to a time.Time.
func (e HistoryEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Clone returns a deep copy so callers cannot mutate cached state.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	if e.Files != nil {
		out.Files = append([]string(nil), e.Files...)
	}
	out.Result = e.Result.Clone()
	return out
}
