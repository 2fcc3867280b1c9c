package models

import "time"

type Video struct {
	ID              string    `json:"id"`
	ChatID          string    `json:"chat_id"`
	MessageID       string    `json:"message_id"`
	VideoURL        string    `json:"video_url"`
	Code            string    `json:"code,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type JobStatus string

const (
	JobQueued  JobStatus = "QUEUED"
	JobRunning JobStatus = "RUNNING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// NarrationJob tracks one narrate-and-merge request for a video.
type NarrationJob struct {
	ID         string     `json:"id"`
	VideoID    string     `json:"video_id"`
	Status     JobStatus  `json:"status"`
	Script     string     `json:"script"`
	ErrorText  string     `json:"error_text,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
