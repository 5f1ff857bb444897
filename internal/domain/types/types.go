// Package types contains the read shapes served to clients.
package types

// Formatted holds display strings for a result.
type Formatted struct {
	Attempts []string `json:"attempts"`
	Best     string   `json:"best"`
	Average  string   `json:"average,omitempty"`
}

// Row represents a ranked result within a round.
type Row struct {
	Rank      int       `json:"rank"`
	PersonID  string    `json:"person_id"`
	EventID   string    `json:"event_id"`
	Attempts  []int     `json:"attempts"`
	Best      int       `json:"best"`
	Average   int       `json:"average"`
	Formatted Formatted `json:"formatted"`
}

// Evaluation is the outcome of running attempts through the pipeline
// without storing them.
type Evaluation struct {
	SubmissionID string    `json:"submission_id,omitempty"`
	Attempts     []int     `json:"attempts"`
	Best         int       `json:"best"`
	Average      int       `json:"average"`
	MeetsCutoff  bool      `json:"meets_cutoff"`
	Warning      string    `json:"warning,omitempty"`
	WarningKind  string    `json:"warning_kind,omitempty"`
	Formatted    Formatted `json:"formatted"`
}

// Round summarises a round held by the result store.
type Round struct {
	RoundID string `json:"round_id"`
	Results int    `json:"results"`
}
