// Package fsm contains the conversation engine: update dispatch, the
// per-user intake state machine and the completion fan-out.
package fsm

import (
	"context"
	"log"
	"strings"
	"time"

	"telegramsupportbot/pkg/config"
	"telegramsupportbot/pkg/fsm/steps"
	"telegramsupportbot/pkg/mailer"
	"telegramsupportbot/pkg/ports/botport"
	"telegramsupportbot/pkg/state"
	"telegramsupportbot/pkg/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RequestStore persists completed requests and staff replies.
type RequestStore interface {
	SaveRequest(ctx context.Context, req *storage.SupportRequest) error
	SaveReply(ctx context.Context, reply *storage.SupportReply) error
}

// MailSender delivers an email copy of each completed request.
type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Engine routes incoming updates to commands, pending staff replies, the
// forwarded-message shortcut and the per-state steps.
type Engine struct {
	bot      botport.BotPort
	cfg      *config.BotConfig
	store    *state.Store
	requests RequestStore
	mail     MailSender // nil when email delivery is not configured
	throttle *Throttle
}

func NewEngine(bot botport.BotPort, cfg *config.BotConfig, store *state.Store, requests RequestStore, mail MailSender) *Engine {
	return &Engine{
		bot:      bot,
		cfg:      cfg,
		store:    store,
		requests: requests,
		mail:     mail,
		throttle: NewThrottle(time.Duration(cfg.Throttle.CommandCooldownSeconds) * time.Second),
	}
}

// HandleUpdate processes one Telegram update under the user's session lock.
func (e *Engine) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	var chatID int64
	var from *tgbotapi.User

	if update.Message != nil {
		if update.Message.From == nil {
			log.Printf("Warning: Received message with nil From field")
			return
		}
		from = update.Message.From
		chatID = update.Message.Chat.ID
	} else if update.CallbackQuery != nil {
		if update.CallbackQuery.From == nil {
			log.Printf("Warning: Received callback with nil From field")
			return
		}
		from = update.CallbackQuery.From
		if update.CallbackQuery.Message == nil || update.CallbackQuery.Message.Chat == nil {
			log.Printf("Warning: Received callback query with nil Message or Chat field")
			return
		}
		chatID = update.CallbackQuery.Message.Chat.ID
	} else {
		log.Printf("Ignoring update type: %v", update.UpdateID)
		return
	}

	userName := from.FirstName
	if from.LastName != "" {
		userName += " " + from.LastName
	}

	session := e.store.GetOrCreate(from.ID, userName, from.UserName)
	if session == nil {
		log.Printf("Error: Failed to get or create session for user %d", from.ID)
		if chatID != 0 {
			_, _ = e.bot.SendMessage(ctx, chatID, "Произошла внутренняя ошибка. Пожалуйста, попробуйте позже.", nil)
		}
		return
	}

	session.Mu.Lock()
	defer session.Mu.Unlock()

	if update.Message != nil {
		e.handleMessage(ctx, update.Message, session)
	} else if update.CallbackQuery != nil {
		e.handleCallbackQuery(ctx, update.CallbackQuery, session)
	}
}

func (e *Engine) handleMessage(ctx context.Context, message *tgbotapi.Message, session *state.Session) {
	chatID := message.Chat.ID
	text := message.Text

	if message.IsCommand() {
		if !e.throttle.Allow(session.UserID) {
			_, _ = e.bot.SendMessage(ctx, chatID, MsgTooFast, nil)
			return
		}

		switch message.Command() {
		case "start":
			log.Printf("[handleMessage] User %d used /start (state %s)", session.UserID, session.State())
			e.sendWelcome(ctx, chatID)
		case "support":
			if session.State() != state.StateIdle {
				_, _ = e.bot.SendMessage(ctx, chatID, MsgAlreadyActive, nil)
				askCurrentStep(ctx, session, e.bot, 0)
				return
			}
			e.startSupport(ctx, session, 0)
		default:
			_, _ = e.bot.SendMessage(ctx, chatID, MsgUnknownCommand, nil)
		}
		return
	}

	// Pending staff reply takes priority over everything else the admin types.
	if text != "" && e.store.HasReplyTarget(session.UserID) {
		e.relayAdminReply(ctx, session, text)
		return
	}

	if message.ForwardDate != 0 && session.State() == state.StateIdle {
		e.handleForwardedMessage(ctx, message, session)
		return
	}

	if session.State() == state.StateIdle {
		_, _ = e.bot.SendMessage(ctx, chatID, MsgIdleHint, nil)
		return
	}

	e.dispatchStep(ctx, session, buildMessageInput(message), 0)
}

func (e *Engine) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery, session *state.Session) {
	messageID := query.Message.MessageID
	data := query.Data

	if err := e.bot.AnswerCallback(ctx, query.ID, ""); err != nil {
		log.Printf("[handleCallbackQuery] Error answering callback %s for user %d: %v", query.ID, session.UserID, err)
	}

	log.Printf("[handleCallbackQuery] Received callback '%s' from user %d (state %s)", data, session.UserID, session.State())

	switch {
	case data == CallbackStartSupport:
		if session.State() != state.StateIdle {
			_, _ = e.bot.SendMessage(ctx, session.UserID, MsgAlreadyActive, nil)
			return
		}
		if !e.throttle.Allow(session.UserID) {
			return
		}
		e.startSupport(ctx, session, messageID)
		return

	case strings.HasPrefix(data, CallbackReplyPrefix):
		e.handleReplyCallback(ctx, session, data)
		return

	case data == steps.CallbackCancel:
		if session.State() == state.StateIdle {
			return
		}
		e.cancelConversation(ctx, session, messageID)
		return

	case data == steps.CallbackBack:
		event, ok := backEvents[session.State()]
		if !ok {
			log.Printf("[handleCallbackQuery] Warning: back pressed in state '%s' (user %d), no back transition", session.State(), session.UserID)
			_, _ = e.bot.SendMessage(ctx, session.UserID, MsgActionUnavail, nil)
			return
		}
		if err := session.SupportFSM.Event(ctx, event, session, e.bot, messageID); err != nil {
			log.Printf("[handleCallbackQuery] Error triggering %s for user %d: %v", event, session.UserID, err)
		}
		return
	}

	if session.State() == state.StateIdle {
		log.Printf("[handleCallbackQuery] Warning: callback '%s' from idle user %d ignored", data, session.UserID)
		return
	}

	e.dispatchStep(ctx, session, steps.Input{
		Source:       steps.SourceCallback,
		CallbackData: data,
	}, messageID)
}

// dispatchStep feeds one input into the step for the current state and
// applies the outcome.
func (e *Engine) dispatchStep(ctx context.Context, session *state.Session, input steps.Input, messageID int) {
	current := session.State()
	step := steps.Get(current)
	if step == nil {
		log.Printf("[dispatchStep] Error: No step registered for state '%s' (user %d)", current, session.UserID)
		e.cancelConversation(ctx, session, messageID)
		return
	}

	if session.Draft == nil {
		session.Draft = state.NewDraft()
	}

	result, err := step.Handle(ctx, steps.HandleContext{
		ChatID: session.UserID,
		Draft:  session.Draft,
	}, input)
	if err != nil {
		log.Printf("[dispatchStep] Error handling input in state '%s' for user %d: %v", current, session.UserID, err)
		_, _ = e.bot.SendMessage(ctx, session.UserID, "Произошла внутренняя ошибка. Пожалуйста, попробуйте позже.", nil)
		return
	}

	e.applyResult(ctx, session, result, messageID)
}

func (e *Engine) applyResult(ctx context.Context, session *state.Session, result steps.Result, messageID int) {
	if result.Feedback != "" {
		_, _ = e.bot.SendMessage(ctx, session.UserID, result.Feedback, nil)
	}

	switch {
	case result.Cancel:
		e.cancelConversation(ctx, session, messageID)
	case result.Done:
		e.completeRequest(ctx, session)
	case result.Advance:
		event, ok := advanceEvents[session.State()]
		if !ok {
			log.Printf("[applyResult] Error: no advance event for state '%s' (user %d)", session.State(), session.UserID)
			return
		}
		if err := session.SupportFSM.Event(ctx, event, session, e.bot, messageID); err != nil && !isNoTransitionError(err) {
			log.Printf("[applyResult] Error triggering %s for user %d: %v", event, session.UserID, err)
			_, _ = e.bot.SendMessage(ctx, session.UserID, "Произошла внутренняя ошибка. Пожалуйста, попробуйте позже.", nil)
		}
	case result.Repeat:
		askCurrentStep(ctx, session, e.bot, messageID)
	}
}

func (e *Engine) startSupport(ctx context.Context, session *state.Session, messageID int) {
	log.Printf("[startSupport] User %d starting support intake", session.UserID)

	session.Draft = state.NewDraft()
	if err := session.SupportFSM.Event(ctx, EventStartSupport, session, e.bot, messageID); err != nil {
		log.Printf("[startSupport] Error triggering EventStartSupport for user %d: %v", session.UserID, err)
		_, _ = e.bot.SendMessage(ctx, session.UserID, "Не удалось начать оформление заявки. Попробуйте позже.", nil)
		if session.SupportFSM.Current() != state.StateIdle {
			session.SupportFSM.SetState(state.StateIdle)
		}
	}
}

// cancelConversation aborts the intake and drops the session.
func (e *Engine) cancelConversation(ctx context.Context, session *state.Session, messageID int) {
	log.Printf("[cancelConversation] User %d cancelled from state '%s'", session.UserID, session.State())

	if session.SupportFSM != nil && session.State() != state.StateIdle {
		if err := session.SupportFSM.Event(ctx, EventCancel); err != nil {
			log.Printf("[cancelConversation] Error triggering EventCancel for user %d: %v. Forcing idle.", session.UserID, err)
			session.SupportFSM.SetState(state.StateIdle)
		}
	}

	if session.Draft != nil && session.Draft.AttachmentPath != "" {
		// The request never got submitted, throw away the downloaded file.
		removeTempFile(session.Draft.AttachmentPath)
	}
	session.Draft = nil

	if messageID != 0 {
		emptyKeyboard := tgbotapi.NewInlineKeyboardMarkup()
		emptyKeyboard.InlineKeyboard = [][]tgbotapi.InlineKeyboardButton{}
		if _, err := e.bot.EditMessage(ctx, session.UserID, messageID, MsgCancelled, &emptyKeyboard); err != nil && !botport.IsCode(err, "message_not_modified") {
			log.Printf("[cancelConversation] Error editing message %d for user %d: %v. Sending new message.", messageID, session.UserID, err)
			_, _ = e.bot.SendMessage(ctx, session.UserID, MsgCancelled, nil)
		}
	} else {
		_, _ = e.bot.SendMessage(ctx, session.UserID, MsgCancelled, nil)
	}

	session.LastMessageID = 0
	e.store.Delete(session.UserID)
}

func (e *Engine) sendWelcome(ctx context.Context, chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 Оставить заявку", CallbackStartSupport),
		),
	)
	if _, err := e.bot.SendMessage(ctx, chatID, MsgWelcome, keyboard); err != nil {
		log.Printf("[sendWelcome] Error sending welcome to chat %d: %v", chatID, err)
	}
}

// BroadcastToAdmins sends an informational message to every staff member.
func (e *Engine) BroadcastToAdmins(ctx context.Context, text string) {
	for _, adminID := range e.cfg.AdminIDs {
		if _, err := e.bot.SendMessage(ctx, adminID, text, nil); err != nil {
			log.Printf("[BroadcastToAdmins] Error notifying admin %d: %v", adminID, err)
		}
	}
}

// buildMessageInput converts a Telegram message into a step input. Documents
// and photos become attachments, everything else is treated as text.
func buildMessageInput(message *tgbotapi.Message) steps.Input {
	if message.Document != nil {
		return steps.Input{
			Source: steps.SourceAttachment,
			Attachment: &steps.Attachment{
				FileID: message.Document.FileID,
				Name:   message.Document.FileName,
				Kind:   storage.KindDocument,
			},
		}
	}
	if len(message.Photo) > 0 {
		best := message.Photo[len(message.Photo)-1]
		return steps.Input{
			Source: steps.SourceAttachment,
			Attachment: &steps.Attachment{
				FileID: best.FileID,
				Kind:   storage.KindPhoto,
			},
		}
	}
	return steps.Input{
		Source: steps.SourceText,
		Text:   message.Text,
	}
}
