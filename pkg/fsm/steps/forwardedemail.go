package steps

import (
	"context"

	"telegramsupportbot/pkg/state"
	"telegramsupportbot/pkg/validate"
)

type forwardedEmailStep struct{}

// NewForwardedEmailStep returns the single question asked when a staff member
// forwards a user's message: the requester's email, or skip.
func NewForwardedEmailStep() Step {
	return &forwardedEmailStep{}
}

func (f *forwardedEmailStep) State() string {
	return state.StateForwardedEmail
}

func (f *forwardedEmailStep) Prompt(rc RenderContext) (PromptSpec, error) {
	return PromptSpec{
		Text:     "Введите email пользователя (или нажмите 'Пропустить'):",
		Keyboard: skipCancelKeyboard(),
	}, nil
}

func (f *forwardedEmailStep) Handle(ctx context.Context, hc HandleContext, input Input) (Result, error) {
	switch input.Source {
	case SourceCallback:
		if input.CallbackData == CallbackSkipEmail {
			return Result{Done: true}, nil
		}
		return Result{Repeat: true}, nil
	case SourceText:
		ok, _ := validate.Email(input.Text)
		if !ok {
			return Result{
				Feedback: "❌ Некорректный email. Попробуйте еще раз:",
				Repeat:   true,
			}, nil
		}

		draft, err := ensureDraft(hc.Draft)
		if err != nil {
			return Result{}, err
		}

		draft.Email = validate.NormalizeEmail(input.Text)
		return Result{Done: true}, nil
	default:
		return Result{
			Feedback: "Пожалуйста, отправьте email текстом или нажмите 'Пропустить'.",
			Repeat:   true,
		}, nil
	}
}
