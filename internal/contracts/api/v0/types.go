// Package v0 holds the JSON bodies of the scenecast HTTP API.
package v0

import (
	"encoding/json"
	"time"

	"scenecast/internal/models"
)

// PostMessageRequest asks for a new animation in a chat. History is an
// encoded session (see GET /chats/{chatId}/session) used only when the chat
// has no stored turns yet.
type PostMessageRequest struct {
	Prompt  string          `json:"prompt"`
	History json.RawMessage `json:"history,omitempty"`
}

type PostMessageResponse struct {
	ChatID             string  `json:"chat_id"`
	UserMessageID      string  `json:"user_message_id"`
	AssistantMessageID string  `json:"assistant_message_id"`
	VideoID            string  `json:"video_id"`
	Reply              string  `json:"reply"`
	Code               string  `json:"code"`
	Summary            string  `json:"summary,omitempty"`
	VideoURL           string  `json:"video_url"`
	DurationSeconds    float64 `json:"duration_seconds"`
	Attempts           int     `json:"attempts"`
}

type MessagesResponse struct {
	ChatID   string           `json:"chat_id"`
	Messages []models.Message `json:"messages"`
}

type SessionResponse struct {
	ChatID string          `json:"chat_id"`
	Turns  json.RawMessage `json:"turns"`
}

// ScriptRequest selects the narration style. Mode is "compact" (default) or
// "detailed".
type ScriptRequest struct {
	Mode string `json:"mode,omitempty"`
}

type ScriptResponse struct {
	VideoID          string  `json:"video_id"`
	Mode             string  `json:"mode"`
	Script           string  `json:"script"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
	WordBudget       int     `json:"word_budget"`
}

// NarrationRequest enqueues a narrate-and-merge job. An empty Script is
// generated from the video's program first.
type NarrationRequest struct {
	Script string `json:"script,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

type NarrationJob struct {
	ID         string     `json:"id"`
	VideoID    string     `json:"video_id"`
	Status     string     `json:"status"`
	Script     string     `json:"script"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type NarrationJobResponse struct {
	Job NarrationJob `json:"job"`
}

func FromNarrationJob(j *models.NarrationJob) NarrationJob {
	return NarrationJob{
		ID:         j.ID,
		VideoID:    j.VideoID,
		Status:     string(j.Status),
		Script:     j.Script,
		Error:      j.ErrorText,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}
