package codegen

import (
	"context"

	"scenecast/internal/llm"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
)

// Completer answers a rendered conversation.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message) (string, error)
}

type Generator struct {
	llm Completer
	log *logger.Logger
}

func NewGenerator(c Completer, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Generator{llm: c, log: log.WithComponent("codegen")}
}

// Generate asks the model to answer prompt in the context of session. The
// user and assistant turns are appended only when the model replies; on
// failure session is unchanged and the error is GENERATION_ERROR.
func (g *Generator) Generate(ctx context.Context, prompt string, session *Session) (string, error) {
	const op = "codegen.generate"

	pending := append(session.Turns(), Turn{Role: RoleUser, Text: prompt})
	reply, err := g.llm.Complete(ctx, toMessages(Render(pending, preamble)))
	if err != nil {
		return "", errors.E(op, errors.CodeGeneration, "failed to generate code", err)
	}

	session.AppendUserTurn(prompt)
	session.AppendAssistantTurn(reply)
	g.log.FromContext(ctx).Debug("generated reply", "turns", session.Len(), "reply_bytes", len(reply))
	return reply, nil
}
