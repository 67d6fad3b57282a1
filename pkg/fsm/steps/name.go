package steps

import (
	"context"
	"strings"

	"telegramsupportbot/pkg/state"
)

type nameStep struct{}

func NewNameStep() Step {
	return &nameStep{}
}

func (n *nameStep) State() string {
	return state.StateGetName
}

func (n *nameStep) Prompt(rc RenderContext) (PromptSpec, error) {
	return PromptSpec{
		Text:     "Пожалуйста, введите ваше имя:",
		Keyboard: cancelKeyboard(),
	}, nil
}

func (n *nameStep) Handle(ctx context.Context, hc HandleContext, input Input) (Result, error) {
	if input.Source != SourceText {
		return Result{
			Feedback: "Пожалуйста, отправьте имя текстом.",
			Repeat:   true,
		}, nil
	}

	if strings.TrimSpace(input.Text) == "" {
		return Result{
			Feedback: "Имя не должно быть пустым, попробуйте ещё раз.",
			Repeat:   true,
		}, nil
	}

	draft, err := ensureDraft(hc.Draft)
	if err != nil {
		return Result{}, err
	}

	draft.Name = input.Text
	return Result{Advance: true}, nil
}
