// Package steps holds one strategy per conversation state: how the step is
// prompted and how user input moves the intake forward.
package steps

import (
	"context"
	"fmt"

	"telegramsupportbot/pkg/filestore"
	"telegramsupportbot/pkg/state"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Step defines the lifecycle hooks for rendering a prompt and processing the
// user's answer for one conversation state.
type Step interface {
	State() string
	Prompt(RenderContext) (PromptSpec, error)
	Handle(ctx context.Context, hc HandleContext, input Input) (Result, error)
}

// RenderContext captures dependencies for prompt generation.
type RenderContext struct {
	ChatID int64
	Draft  *state.Draft
}

// HandleContext carries the session data a step may mutate.
type HandleContext struct {
	ChatID int64
	Draft  *state.Draft
}

// PromptSpec defines the text and markup a step renders.
type PromptSpec struct {
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
	ForceNew bool
}

// InputSource differentiates text, button-press and attachment payloads.
type InputSource string

const (
	SourceText       InputSource = "text"
	SourceCallback   InputSource = "callback"
	SourceAttachment InputSource = "attachment"
)

// Attachment references one document or photo on the transport side.
type Attachment struct {
	FileID string
	Name   string
	Kind   string
}

// Input wraps user responses in a transport-agnostic struct.
type Input struct {
	Source       InputSource
	Text         string
	CallbackData string
	Attachment   *Attachment
}

// Result instructs the engine how to proceed after a step processes an input.
// Advance moves to the next state, Done triggers the completion fan-out,
// Cancel aborts the conversation, Repeat re-prompts the current step.
type Result struct {
	Advance  bool
	Done     bool
	Cancel   bool
	Repeat   bool
	Feedback string
}

// Downloader fetches an attachment into local storage.
type Downloader interface {
	Download(ctx context.Context, h filestore.Handle) (string, error)
}

func ensureDraft(draft *state.Draft) (*state.Draft, error) {
	if draft == nil {
		return nil, fmt.Errorf("draft is nil")
	}
	return draft, nil
}
