package steps

import (
	"context"
	"fmt"

	"telegramsupportbot/pkg/state"
)

type consentStep struct {
	policyURL string
}

// NewConsentStep returns the personal-data consent gate.
func NewConsentStep(policyURL string) Step {
	return &consentStep{policyURL: policyURL}
}

func (c *consentStep) State() string {
	return state.StateConsent
}

func (c *consentStep) Prompt(rc RenderContext) (PromptSpec, error) {
	text := "Вы даете согласие на обработку персональных данных?"
	if c.policyURL != "" {
		text = fmt.Sprintf("%s\n\nПолитика в отношении обработки и защиты персональных данных: %s", text, c.policyURL)
	}
	return PromptSpec{
		Text:     text,
		Keyboard: consentKeyboard(),
	}, nil
}

func (c *consentStep) Handle(ctx context.Context, hc HandleContext, input Input) (Result, error) {
	if input.Source != SourceCallback {
		return Result{
			Feedback: "Пожалуйста, используйте кнопки ниже.",
			Repeat:   true,
		}, nil
	}

	switch input.CallbackData {
	case CallbackConsentYes:
		return Result{Advance: true}, nil
	case CallbackCancel:
		return Result{Cancel: true}, nil
	default:
		return Result{Repeat: true}, nil
	}
}
