// Package llm wraps an OpenAI-compatible endpoint for chat completions and
// speech synthesis.
package llm

import (
	"context"
	stderrors "errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"scenecast/internal/config"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/metrics"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

var (
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = stderrors.New("llm: empty response")
	// ErrEmptyAudio is returned when speech synthesis produces no bytes.
	ErrEmptyAudio = stderrors.New("llm: empty audio")
)

// ChatClient is the subset of the go-openai client used for completions.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// SpeechClient is the subset of the go-openai client used for speech.
type SpeechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

type Message struct {
	Role    string
	Content string
}

type Options struct {
	Chat        ChatClient
	Speech      SpeechClient
	Model       string
	Temperature float32
	SpeechModel string
	Voice       string
	Log         *logger.Logger
	Metrics     *metrics.Metrics
}

type Client struct {
	chat        ChatClient
	speech      SpeechClient
	model       string
	temperature float32
	speechModel string
	voice       string
	log         *logger.Logger
	metrics     *metrics.Metrics
}

func New(opts Options) (*Client, error) {
	if opts.Chat == nil {
		return nil, stderrors.New("llm: chat client is required")
	}
	if opts.Model == "" {
		return nil, stderrors.New("llm: model is required")
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault()
	}
	if opts.SpeechModel == "" {
		opts.SpeechModel = string(openai.TTSModel1)
	}
	if opts.Voice == "" {
		opts.Voice = string(openai.VoiceAlloy)
	}
	return &Client{
		chat:        opts.Chat,
		speech:      opts.Speech,
		model:       opts.Model,
		temperature: opts.Temperature,
		speechModel: opts.SpeechModel,
		voice:       opts.Voice,
		log:         opts.Log.WithComponent("llm"),
		metrics:     opts.Metrics,
	}, nil
}

// NewFromConfig builds go-openai clients for the configured endpoints.
func NewFromConfig(cfg config.LLM, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, stderrors.New("llm: api key is required")
	}
	chatCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	speechURL, speechKey := cfg.SpeechEndpoint()
	speechCfg := openai.DefaultConfig(speechKey)
	if speechURL != "" {
		speechCfg.BaseURL = strings.TrimSuffix(speechURL, "/")
	}
	return New(Options{
		Chat:        openai.NewClientWithConfig(chatCfg),
		Speech:      openai.NewClientWithConfig(speechCfg),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		SpeechModel: cfg.SpeechModel,
		Voice:       cfg.Voice,
		Log:         log,
		Metrics:     m,
	})
}

// Complete sends msgs and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	if len(msgs) == 0 {
		return "", stderrors.New("llm: messages are required")
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)),
		Temperature: c.temperature,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err == nil && (len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "") {
		err = ErrEmptyResponse
	}
	c.metrics.ObserveLLM("chat", err)
	if err != nil {
		c.log.FromContext(ctx).Warn("chat completion failed", "model", c.model, "error", err.Error())
		return "", err
	}
	c.log.FromContext(ctx).Debug("chat completion",
		"model", c.model,
		"messages", len(msgs),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// Speak synthesizes text as MP3 into w and returns the bytes written.
func (c *Client) Speak(ctx context.Context, text string, w io.Writer) (int64, error) {
	if c.speech == nil {
		return 0, stderrors.New("llm: speech client is not configured")
	}
	n, err := c.speak(ctx, text, w)
	c.metrics.ObserveLLM("speech", err)
	if err != nil {
		c.log.FromContext(ctx).Warn("speech synthesis failed", "model", c.speechModel, "error", err.Error())
	}
	return n, err
}

func (c *Client) speak(ctx context.Context, text string, w io.Writer) (int64, error) {
	resp, err := c.speech.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.speechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Close()

	n, err := io.Copy(w, resp)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, ErrEmptyAudio
	}
	return n, nil
}
