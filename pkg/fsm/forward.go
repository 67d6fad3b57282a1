package fsm

import (
	"context"
	"log"

	"telegramsupportbot/pkg/state"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleForwardedMessage implements the staff shortcut: a message forwarded
// by a staff member while idle seeds a draft with the original sender's
// identity and the forwarded text, then asks only for the requester's email.
func (e *Engine) handleForwardedMessage(ctx context.Context, message *tgbotapi.Message, session *state.Session) {
	chatID := message.Chat.ID

	if !e.cfg.IsAdmin(session.UserID) {
		log.Printf("[handleForwardedMessage] User %d is not staff, rejecting forwarded message", session.UserID)
		_, _ = e.bot.SendMessage(ctx, chatID, MsgStaffOnly, nil)
		return
	}

	fwd := message.ForwardFrom
	if fwd == nil {
		// Sender privacy settings hide the origin, nothing to seed the draft with.
		log.Printf("[handleForwardedMessage] Forward origin hidden for message from staff %d", session.UserID)
		_, _ = e.bot.SendMessage(ctx, chatID, MsgNotForwarded, nil)
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if text == "" {
		_, _ = e.bot.SendMessage(ctx, chatID, "Пересланное сообщение не содержит текста.", nil)
		return
	}

	requesterName := fwd.FirstName
	if fwd.LastName != "" {
		requesterName += " " + fwd.LastName
	}

	draft := state.NewDraft()
	draft.Forwarded = true
	draft.RequesterID = fwd.ID
	draft.RequesterUsername = fwd.UserName
	draft.RequesterName = requesterName
	draft.StaffID = session.UserID
	draft.StaffName = session.UserName
	draft.Name = requesterName
	draft.Problem = text
	session.Draft = draft

	log.Printf("[handleForwardedMessage] Staff %d filing request on behalf of user %d", session.UserID, fwd.ID)

	if err := session.SupportFSM.Event(ctx, EventStartForwarded, session, e.bot, 0); err != nil {
		log.Printf("[handleForwardedMessage] Error triggering EventStartForwarded for staff %d: %v", session.UserID, err)
		_, _ = e.bot.SendMessage(ctx, chatID, "Не удалось начать оформление заявки. Попробуйте позже.", nil)
		session.Draft = nil
		if session.SupportFSM.Current() != state.StateIdle {
			session.SupportFSM.SetState(state.StateIdle)
		}
	}
}
