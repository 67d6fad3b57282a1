package steps

import (
	"context"

	"telegramsupportbot/pkg/state"
	"telegramsupportbot/pkg/validate"
)

type emailStep struct{}

func NewEmailStep() Step {
	return &emailStep{}
}

func (e *emailStep) State() string {
	return state.StateGetEmail
}

func (e *emailStep) Prompt(rc RenderContext) (PromptSpec, error) {
	return PromptSpec{
		Text:     "Введите ваш email:",
		Keyboard: backCancelKeyboard(),
	}, nil
}

func (e *emailStep) Handle(ctx context.Context, hc HandleContext, input Input) (Result, error) {
	if input.Source != SourceText {
		return Result{
			Feedback: "Пожалуйста, отправьте email текстом.",
			Repeat:   true,
		}, nil
	}

	ok, reason := validate.Email(input.Text)
	if !ok {
		return Result{
			Feedback: "Некорректный email: " + reason + ". Пожалуйста, введите email еще раз.",
			Repeat:   true,
		}, nil
	}

	draft, err := ensureDraft(hc.Draft)
	if err != nil {
		return Result{}, err
	}

	draft.Email = validate.NormalizeEmail(input.Text)
	return Result{Advance: true}, nil
}
