package store

import "time"

// ReportRecord is one archived board report.
type ReportRecord struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Tester    string         `json:"tester"`
	Slot      int            `json:"slot"`
	Status    string         `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Results   []ResultRecord `json:"results"`
	LogFile   string         `json:"log_file,omitempty"`
}

// ResultRecord is one test step inside a ReportRecord.
type ResultRecord struct {
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Value     string    `json:"value"`
	Failed    bool      `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
