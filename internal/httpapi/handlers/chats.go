package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"scenecast/internal/codegen"
	v0 "scenecast/internal/contracts/api/v0"
	"scenecast/internal/httpkit"
	"scenecast/internal/pipeline"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/middleware"
	"scenecast/internal/repositories"
)

// PostMessage generates, renders and stores an animation for the prompt,
// regenerating the program when a render fails.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) error {
	const op = "handlers.post_message"
	ctx := r.Context()
	owner := middleware.UserFromContext(ctx)

	chatID, err := pathParam(r, "chatId")
	if err != nil {
		return err
	}
	ctx = logger.ContextWithChatID(ctx, chatID)

	var req v0.PostMessageRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return errors.E(op, errors.CodeValidation, "invalid json body", err)
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return errors.ValidationField("prompt", "prompt is required")
	}

	session, err := h.chatSession(ctx, chatID, owner, true)
	if err != nil {
		return err
	}
	if session.Len() == 0 && len(req.History) > 0 {
		decoded, decErr := codegen.DecodeSession(req.History)
		if decErr != nil {
			h.log.FromContext(ctx).Warn("discarding malformed history", "error", decErr.Error())
		}
		session = decoded
	}

	out, err := h.pipeline.Run(ctx, pipeline.Request{
		Owner:   owner,
		ChatID:  chatID,
		Prompt:  prompt,
		Session: session,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrChatOwnerMismatch) {
			return chatNotFound(op, chatID, err)
		}
		return err
	}

	httpkit.WriteJSON(w, http.StatusCreated, v0.PostMessageResponse{
		ChatID:             chatID,
		UserMessageID:      out.Record.UserMessageID,
		AssistantMessageID: out.Record.AssistantMessageID,
		VideoID:            out.Record.VideoID,
		Reply:              out.Reply,
		Code:               out.Code,
		Summary:            out.Summary,
		VideoURL:           out.VideoURL,
		DurationSeconds:    out.DurationSeconds,
		Attempts:           out.Attempts,
	})
	return nil
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) error {
	const op = "handlers.list_messages"
	ctx := r.Context()

	chatID, err := pathParam(r, "chatId")
	if err != nil {
		return err
	}
	if _, err := h.chats.GetOwned(ctx, chatID, middleware.UserFromContext(ctx)); err != nil {
		return chatErr(op, chatID, err)
	}
	msgs, err := h.chats.ListMessages(ctx, chatID)
	if err != nil {
		return errors.Wrap(err, op, "failed to list messages")
	}

	httpkit.WriteJSON(w, http.StatusOK, v0.MessagesResponse{ChatID: chatID, Messages: msgs})
	return nil
}

// GetSession returns the chat history in its transport encoding.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) error {
	const op = "handlers.get_session"
	ctx := r.Context()

	chatID, err := pathParam(r, "chatId")
	if err != nil {
		return err
	}
	session, err := h.chatSession(ctx, chatID, middleware.UserFromContext(ctx), false)
	if err != nil {
		return err
	}
	encoded, err := codegen.EncodeSession(session)
	if err != nil {
		return errors.Wrap(err, op, "failed to encode session")
	}

	httpkit.WriteJSON(w, http.StatusOK, v0.SessionResponse{ChatID: chatID, Turns: encoded})
	return nil
}

// chatSession rebuilds the generation history of chatID. A chat that does
// not exist yet yields an empty session when allowNew is set.
func (h *Handler) chatSession(ctx context.Context, chatID, owner string, allowNew bool) (*codegen.Session, error) {
	const op = "handlers.chat_session"

	chat, err := h.chats.Get(ctx, chatID)
	switch {
	case errors.Is(err, repositories.ErrChatNotFound) && allowNew:
		return codegen.NewSession(), nil
	case err != nil:
		return nil, chatErr(op, chatID, err)
	case chat.Owner != owner:
		return nil, chatNotFound(op, chatID, repositories.ErrChatNotFound)
	}

	msgs, err := h.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, errors.Wrap(err, op, "failed to load history")
	}
	turns := make([]codegen.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, codegen.Turn{Role: codegen.Role(m.Role), Text: m.Content})
	}
	return codegen.NewSession(turns...), nil
}

func chatErr(op, chatID string, err error) error {
	if errors.Is(err, repositories.ErrChatNotFound) {
		return chatNotFound(op, chatID, err)
	}
	return errors.Wrap(err, op, "failed to load chat")
}

func chatNotFound(op, chatID string, err error) error {
	return errors.E(op, errors.CodeNotFound, "chat not found", err).WithField("chat_id", chatID)
}

func pathParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", errors.ValidationField(name, name+" is required")
	}
	return v, nil
}
