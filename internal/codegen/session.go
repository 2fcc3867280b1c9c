// Package codegen holds the conversation that turns user requests into Manim
// programs and the helpers that pull code out of model replies.
package codegen

import (
	"encoding/json"
	"fmt"
	"strings"

	"scenecast/internal/llm"
)

type Role string

const (
	RoleSystem    Role = llm.RoleSystem
	RoleUser      Role = llm.RoleUser
	RoleAssistant Role = llm.RoleAssistant
)

func (r Role) valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Turn is one message of the conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// Session is the ordered history of generated pairs. Turns are only ever
// appended; the preamble is not stored and is prepended by Render.
type Session struct {
	turns []Turn
}

func NewSession(turns ...Turn) *Session {
	s := &Session{}
	s.turns = append(s.turns, turns...)
	return s
}

// Turns returns a copy of the history.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Len() int { return len(s.turns) }

func (s *Session) AppendUserTurn(text string) {
	s.turns = append(s.turns, Turn{Role: RoleUser, Text: text})
}

func (s *Session) AppendAssistantTurn(text string) {
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Text: text})
}

// Render returns preamble followed by turns as a new slice.
func Render(turns, preamble []Turn) []Turn {
	out := make([]Turn, 0, len(preamble)+len(turns))
	out = append(out, preamble...)
	return append(out, turns...)
}

// EncodeSession serializes the history as a JSON array of {role, content}.
func EncodeSession(s *Session) ([]byte, error) {
	turns := s.turns
	if turns == nil {
		turns = []Turn{}
	}
	return json.Marshal(turns)
}

// DecodeSession parses an encoded history. Blank input is an empty session.
// On malformed input it returns an empty session together with the error so
// the caller can log it and continue.
func DecodeSession(data []byte) (*Session, error) {
	if strings.TrimSpace(string(data)) == "" {
		return NewSession(), nil
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return NewSession(), fmt.Errorf("decode session: %w", err)
	}
	for i, t := range turns {
		if !t.Role.valid() {
			return NewSession(), fmt.Errorf("decode session: turn %d has unknown role %q", i, t.Role)
		}
	}
	return NewSession(turns...), nil
}

func toMessages(turns []Turn) []llm.Message {
	msgs := make([]llm.Message, len(turns))
	for i, t := range turns {
		msgs[i] = llm.Message{Role: string(t.Role), Content: t.Text}
	}
	return msgs
}
