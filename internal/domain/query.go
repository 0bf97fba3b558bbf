package domain

// RunState is the lifecycle state of the query execution controller.
type RunState string

const (
	RunIdle      RunState = "idle"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// AnalysisRequest is sent to the remote pipeline.
type AnalysisRequest struct {
	Query   string   `json:"query"`
	FileIDs []string `json:"file_ids"`
}

// NoticeLevel tells the view how to style a notification.
type NoticeLevel string

const (
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a user-visible, dismissable message raised by a run.
type Notice struct {
	Level   NoticeLevel
	Message string
}
