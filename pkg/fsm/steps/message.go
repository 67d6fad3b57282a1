package steps

import (
	"context"
	"strings"

	"telegramsupportbot/pkg/state"
)

type messageStep struct{}

func NewMessageStep() Step {
	return &messageStep{}
}

func (m *messageStep) State() string {
	return state.StateGetMessage
}

func (m *messageStep) Prompt(rc RenderContext) (PromptSpec, error) {
	return PromptSpec{
		Text:     "Опишите вашу проблему:",
		Keyboard: backCancelKeyboard(),
	}, nil
}

func (m *messageStep) Handle(ctx context.Context, hc HandleContext, input Input) (Result, error) {
	if input.Source != SourceText {
		return Result{
			Feedback: "Пожалуйста, опишите проблему текстом.",
			Repeat:   true,
		}, nil
	}

	if strings.TrimSpace(input.Text) == "" {
		return Result{
			Feedback: "Описание не должно быть пустым, попробуйте ещё раз.",
			Repeat:   true,
		}, nil
	}

	draft, err := ensureDraft(hc.Draft)
	if err != nil {
		return Result{}, err
	}

	draft.Problem = input.Text
	return Result{Advance: true}, nil
}
