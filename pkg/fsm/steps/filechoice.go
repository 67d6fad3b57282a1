package steps

import (
	"context"

	"telegramsupportbot/pkg/state"
)

type fileChoiceStep struct{}

func NewFileChoiceStep() Step {
	return &fileChoiceStep{}
}

func (f *fileChoiceStep) State() string {
	return state.StateFileChoice
}

func (f *fileChoiceStep) Prompt(rc RenderContext) (PromptSpec, error) {
	return PromptSpec{
		Text:     "Хотите прикрепить файл к заявке?",
		Keyboard: yesNoKeyboard(),
	}, nil
}

func (f *fileChoiceStep) Handle(ctx context.Context, hc HandleContext, input Input) (Result, error) {
	if input.Source != SourceCallback {
		return Result{
			Feedback: "Пожалуйста, выберите ответ с помощью кнопок ниже.",
			Repeat:   true,
		}, nil
	}

	switch input.CallbackData {
	case CallbackAttachNo:
		return Result{Done: true}, nil
	case CallbackAttachYes:
		return Result{Advance: true}, nil
	default:
		return Result{Repeat: true}, nil
	}
}
