package fsm

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"telegramsupportbot/pkg/filestore"
	"telegramsupportbot/pkg/mailer"
	"telegramsupportbot/pkg/state"
	"telegramsupportbot/pkg/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// completeRequest runs the completion fan-out: persist the request, notify
// every staff member, send the email copy, acknowledge the user and clear
// the session. Persistence failure aborts the fan-out; notification and
// email failures are logged and do not block each other.
func (e *Engine) completeRequest(ctx context.Context, session *state.Session) {
	draft := session.Draft
	if draft == nil {
		log.Printf("[completeRequest] Error: nil draft for user %d", session.UserID)
		e.finishConversation(ctx, session)
		return
	}

	req := buildRequest(session, draft)
	if err := e.requests.SaveRequest(ctx, req); err != nil {
		log.Printf("[completeRequest] Error saving request for user %d: %v", session.UserID, err)
		_, _ = e.bot.SendMessage(ctx, session.UserID, MsgSubmitFailed, nil)
		removeTempFile(draft.AttachmentPath)
		e.finishConversation(ctx, session)
		return
	}
	log.Printf("[completeRequest] Request #%d saved for user %d", req.ID, req.UserID)

	e.notifyAdmins(ctx, req)
	e.sendEmailCopy(ctx, req)

	if _, err := e.bot.SendMessage(ctx, session.UserID, MsgSubmitted, nil); err != nil {
		log.Printf("[completeRequest] Error acknowledging user %d: %v", session.UserID, err)
	}

	removeTempFile(draft.AttachmentPath)
	e.finishConversation(ctx, session)
}

// finishConversation returns the machine to idle and drops the session.
func (e *Engine) finishConversation(ctx context.Context, session *state.Session) {
	if session.SupportFSM != nil && session.State() != state.StateIdle {
		if err := session.SupportFSM.Event(ctx, EventComplete); err != nil {
			log.Printf("[finishConversation] Error triggering EventComplete for user %d: %v. Forcing idle.", session.UserID, err)
			session.SupportFSM.SetState(state.StateIdle)
		}
	}
	session.Draft = nil
	session.LastMessageID = 0
	e.store.Delete(session.UserID)
}

func buildRequest(session *state.Session, draft *state.Draft) *storage.SupportRequest {
	req := &storage.SupportRequest{
		UserID:       session.UserID,
		UserUsername: optionalString(session.Username),
		Name:         draft.Name,
		Email:        optionalString(draft.Email),
		Message:      draft.Problem,
	}

	if draft.AttachmentPath != "" {
		req.AttachmentPath = optionalString(draft.AttachmentPath)
		req.AttachmentKind = optionalString(draft.AttachmentKind)
	}

	if draft.Forwarded {
		req.UserID = draft.RequesterID
		req.UserUsername = optionalString(draft.RequesterUsername)
		req.Name = draft.RequesterName
		staffID := draft.StaffID
		req.AdminID = &staffID
		req.AdminName = optionalString(draft.StaffName)
	}

	return req
}

// notifyAdmins delivers the request summary (and attachment) to every staff
// member independently; one failed delivery does not stop the rest.
func (e *Engine) notifyAdmins(ctx context.Context, req *storage.SupportRequest) {
	summary := buildAdminSummary(req)
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✉️ Ответить", fmt.Sprintf("%s%d_%d", CallbackReplyPrefix, req.ID, req.UserID)),
		),
	)

	for _, adminID := range e.cfg.AdminIDs {
		if _, err := e.bot.SendMessage(ctx, adminID, summary, keyboard); err != nil {
			log.Printf("[notifyAdmins] Error notifying admin %d about request #%d: %v", adminID, req.ID, err)
			continue
		}

		if req.AttachmentPath == nil {
			continue
		}
		caption := fmt.Sprintf("Вложение к заявке #%d", req.ID)
		var err error
		if req.AttachmentKind != nil && *req.AttachmentKind == storage.KindPhoto {
			_, err = e.bot.SendPhoto(ctx, adminID, *req.AttachmentPath, caption)
		} else {
			_, err = e.bot.SendDocument(ctx, adminID, *req.AttachmentPath, caption)
		}
		if err != nil {
			log.Printf("[notifyAdmins] Error sending attachment of request #%d to admin %d: %v", req.ID, adminID, err)
		}
	}
}

func buildAdminSummary(req *storage.SupportRequest) string {
	var sb strings.Builder
	sb.WriteString("📩 Новая заявка в техподдержку!\n\n")
	sb.WriteString(fmt.Sprintf("👤 Имя: %s\n", req.Name))
	sb.WriteString(fmt.Sprintf("📧 Email: %s\n", emailOrPlaceholder(req.Email)))
	sb.WriteString(fmt.Sprintf("🆔 Telegram ID: %d\n", req.UserID))
	sb.WriteString(fmt.Sprintf("👤 Username: %s\n", usernameOrPlaceholder(req.UserUsername)))
	if req.AdminName != nil {
		sb.WriteString(fmt.Sprintf("📨 Заявка оформлена сотрудником: %s\n", *req.AdminName))
	}
	sb.WriteString(fmt.Sprintf("\n📝 Сообщение:\n%s", req.Message))
	return sb.String()
}

// sendEmailCopy mails the request to the support inbox. Skipped silently
// when email delivery is not configured.
func (e *Engine) sendEmailCopy(ctx context.Context, req *storage.SupportRequest) {
	if e.mail == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<p><b>Имя:</b> %s</p>", html.EscapeString(req.Name)))
	sb.WriteString(fmt.Sprintf("<p><b>Email:</b> %s</p>", html.EscapeString(emailOrPlaceholder(req.Email))))
	sb.WriteString(fmt.Sprintf("<p><b>Telegram ID:</b> %d</p>", req.UserID))
	sb.WriteString(fmt.Sprintf("<p><b>Username:</b> %s</p>", html.EscapeString(usernameOrPlaceholder(req.UserUsername))))
	if req.AdminName != nil {
		sb.WriteString(fmt.Sprintf("<p><b>Заявка оформлена сотрудником:</b> %s</p>", html.EscapeString(*req.AdminName)))
	}
	body := strings.ReplaceAll(html.EscapeString(req.Message), "\n", "<br>")
	sb.WriteString(fmt.Sprintf("<p><b>Сообщение:</b><br>%s</p>", body))

	msg := mailerMessage(e.cfg.Email.Subject, sb.String(), req.AttachmentPath)
	if err := e.mail.Send(ctx, msg); err != nil {
		log.Printf("[sendEmailCopy] Error mailing request #%d: %v", req.ID, err)
	} else {
		log.Printf("[sendEmailCopy] Request #%d mailed to support inbox", req.ID)
	}
}

func mailerMessage(subject, htmlBody string, attachment *string) mailer.Message {
	msg := mailer.Message{Subject: subject, HTMLBody: htmlBody}
	if attachment != nil && *attachment != "" {
		msg.Attachments = []string{*attachment}
	}
	return msg
}

func emailOrPlaceholder(email *string) string {
	if email == nil || *email == "" {
		return "не указан"
	}
	return *email
}

func usernameOrPlaceholder(username *string) string {
	if username == nil || *username == "" {
		return "—"
	}
	return "@" + *username
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func removeTempFile(path string) {
	if path == "" {
		return
	}
	filestore.Remove(path)
}
