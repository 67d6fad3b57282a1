package fsm

import (
	"context"
	"log"

	"telegramsupportbot/pkg/fsm/steps"
	"telegramsupportbot/pkg/ports/botport"
	"telegramsupportbot/pkg/state"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/looplab/fsm"
)

// NewSupportFSM builds the per-user intake machine. When withConsent is
// false the flow starts directly at the name question.
func NewSupportFSM(initialState string, withConsent bool) *fsm.FSM {
	startDst := state.StateConsent
	if !withConsent {
		startDst = state.StateGetName
	}

	promptingStates := []string{
		state.StateConsent,
		state.StateGetName,
		state.StateGetEmail,
		state.StateGetMessage,
		state.StateFileChoice,
		state.StateFileUpload,
		state.StateForwardedEmail,
	}

	callbacks := fsm.Callbacks{}
	for _, s := range promptingStates {
		callbacks["enter_"+s] = enterPromptingState
	}

	nonIdle := promptingStates

	events := fsm.Events{
		{Name: EventStartSupport, Src: []string{state.StateIdle}, Dst: startDst},
		{Name: EventStartForwarded, Src: []string{state.StateIdle}, Dst: state.StateForwardedEmail},
		{Name: EventConsentGiven, Src: []string{state.StateConsent}, Dst: state.StateGetName},
		{Name: EventNameSaved, Src: []string{state.StateGetName}, Dst: state.StateGetEmail},
		{Name: EventEmailSaved, Src: []string{state.StateGetEmail}, Dst: state.StateGetMessage},
		{Name: EventProblemSaved, Src: []string{state.StateGetMessage}, Dst: state.StateFileChoice},
		{Name: EventAttachFile, Src: []string{state.StateFileChoice}, Dst: state.StateFileUpload},
		{Name: EventBackToName, Src: []string{state.StateGetEmail}, Dst: state.StateGetName},
		{Name: EventBackToEmail, Src: []string{state.StateGetMessage}, Dst: state.StateGetEmail},
		{Name: EventBackToMessage, Src: []string{state.StateFileChoice}, Dst: state.StateGetMessage},
		{Name: EventComplete, Src: []string{state.StateFileChoice, state.StateFileUpload, state.StateForwardedEmail}, Dst: state.StateIdle},
		{Name: EventCancel, Src: nonIdle, Dst: state.StateIdle},
	}

	return fsm.NewFSM(initialState, events, callbacks)
}

// enterPromptingState renders the prompt of the state just entered.
// Args: *state.Session, botport.BotPort, messageID int.
func enterPromptingState(ctx context.Context, e *fsm.Event) {
	if len(e.Args) < 2 {
		log.Printf("[enterPromptingState] FATAL: Not enough arguments for event %s (got %d)", e.Event, len(e.Args))
		return
	}
	session, okS := e.Args[0].(*state.Session)
	botPort, okB := e.Args[1].(botport.BotPort)
	var messageID int
	if len(e.Args) > 2 {
		messageID, _ = e.Args[2].(int)
	}

	if !okS || session == nil {
		log.Printf("[enterPromptingState] FATAL: Failed to cast or nil Session arg for event %s", e.Event)
		return
	}
	if !okB || botPort == nil {
		log.Printf("[enterPromptingState] FATAL: Failed to cast or nil BotPort arg for event %s", e.Event)
		return
	}

	askCurrentStep(ctx, session, botPort, messageID)
}

// askCurrentStep renders the prompt for the session's current state, editing
// the previous prompt message when possible.
func askCurrentStep(ctx context.Context, session *state.Session, botPort botport.BotPort, messageIDToEdit int) {
	current := session.State()
	step := steps.Get(current)
	if step == nil {
		log.Printf("[askCurrentStep] Error: No step registered for state '%s' (user %d)", current, session.UserID)
		_, _ = botPort.SendMessage(ctx, session.UserID, "Произошла внутренняя ошибка. Пожалуйста, попробуйте позже.", nil)
		return
	}

	prompt, err := step.Prompt(steps.RenderContext{
		ChatID: session.UserID,
		Draft:  session.Draft,
	})
	if err != nil {
		log.Printf("[askCurrentStep] Error rendering prompt for state '%s' user %d: %v", current, session.UserID, err)
		_, _ = botPort.SendMessage(ctx, session.UserID, "Не удалось подготовить вопрос. Попробуйте позже.", nil)
		return
	}

	var keyboard *tgbotapi.InlineKeyboardMarkup
	if prompt.Keyboard != nil {
		keyboard = prompt.Keyboard
	} else {
		empty := tgbotapi.NewInlineKeyboardMarkup()
		keyboard = &empty
	}

	effectiveMessageID := messageIDToEdit
	if effectiveMessageID == 0 && session.LastMessageID != 0 && !prompt.ForceNew {
		effectiveMessageID = session.LastMessageID
	}
	isEdit := effectiveMessageID != 0 && !prompt.ForceNew

	var sentMsg botport.BotMessage
	if isEdit {
		sentMsg, err = botPort.EditMessage(ctx, session.UserID, effectiveMessageID, prompt.Text, keyboard)
	} else {
		sentMsg, err = botPort.SendMessage(ctx, session.UserID, prompt.Text, keyboard)
	}

	if err != nil {
		if isEdit && botport.IsCode(err, "message_not_modified") {
			sentMsg = botport.BotMessage{ChatID: session.UserID, MessageID: effectiveMessageID, Transport: "telegram"}
		} else if isEdit {
			log.Printf("[askCurrentStep] Edit of message %d failed for user %d: %v. Sending new message.", effectiveMessageID, session.UserID, err)
			sentMsg, err = botPort.SendMessage(ctx, session.UserID, prompt.Text, keyboard)
			if err != nil {
				log.Printf("[askCurrentStep] Error sending prompt for state '%s' user %d: %v", current, session.UserID, err)
				return
			}
		} else {
			log.Printf("[askCurrentStep] Error sending prompt for state '%s' user %d: %v", current, session.UserID, err)
			return
		}
	}

	session.LastMessageID = sentMsg.MessageID
	session.LastPrompt = sentMsg
}
