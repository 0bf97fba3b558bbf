package domain

import "time"

// PipelineStage describes one step of the backend pipeline shown while a
// query is in flight.
type PipelineStage struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
}

// StageStatus is the display state of a stage relative to the current index.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageActive   StageStatus = "active"
	StageComplete StageStatus = "complete"
)

// StatusAt classifies the stage at position i given the current stage index.
func StatusAt(i, current int) StageStatus {
	switch {
	case i < current:
		return StageComplete
	case i == current:
		return StageActive
	default:
		return StagePending
	}
}

// DefaultStages mirrors the nodes of the analysis agent graph.
func DefaultStages() []PipelineStage {
	return []PipelineStage{
		{ID: "query_router", Label: "Routing query", Description: "Classifying the question", Icon: "compass"},
		{ID: "data_collector", Label: "Collecting data", Description: "Reading interviews, analytics, support and sales sources", Icon: "database"},
		{ID: "data_processor", Label: "Processing data", Description: "Aggregating signals across sources", Icon: "filter"},
		{ID: "analyzer", Label: "Analyzing opportunities", Description: "Scoring features with RICE", Icon: "chart"},
		{ID: "generator", Label: "Generating documents", Description: "Writing spec, UI proposals and tasks", Icon: "pen"},
		{ID: "reviewer", Label: "Reviewing", Description: "Checking the output for consistency", Icon: "check"},
	}
}

// DefaultStageSchedule holds the time spent on each stage before moving to
// the next one. It has one entry per transition.
func DefaultStageSchedule() []time.Duration {
	return []time.Duration{
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		6 * time.Second,
		8 * time.Second,
	}
}
