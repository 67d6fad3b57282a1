package fsm

import (
	"context"
	"log"
	"strconv"
	"strings"

	"telegramsupportbot/pkg/state"
	"telegramsupportbot/pkg/storage"
)

// handleReplyCallback opens a single-shot reply session: the admin's next
// text message gets relayed to the requester named in the callback payload.
func (e *Engine) handleReplyCallback(ctx context.Context, session *state.Session, data string) {
	if !e.cfg.IsAdmin(session.UserID) {
		log.Printf("[handleReplyCallback] User %d is not staff, ignoring reply callback", session.UserID)
		_, _ = e.bot.SendMessage(ctx, session.UserID, MsgStaffOnly, nil)
		return
	}

	payload := strings.TrimPrefix(data, CallbackReplyPrefix)
	parts := strings.SplitN(payload, "_", 2)
	if len(parts) != 2 {
		log.Printf("[handleReplyCallback] Error: malformed reply callback '%s' from admin %d", data, session.UserID)
		return
	}

	requestID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		log.Printf("[handleReplyCallback] Error: bad request id in callback '%s': %v", data, err)
		return
	}
	requesterID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		log.Printf("[handleReplyCallback] Error: bad requester id in callback '%s': %v", data, err)
		return
	}

	e.store.SetReplyTarget(session.UserID, state.ReplySession{
		RequesterID: requesterID,
		RequestID:   uint(requestID),
	})

	log.Printf("[handleReplyCallback] Admin %d replying to request #%d (user %d)", session.UserID, requestID, requesterID)
	_, _ = e.bot.SendMessage(ctx, session.UserID, MsgEnterReply, nil)
}

// relayAdminReply forwards the admin's text to the requester and records the
// reply. The reply session is consumed whether or not delivery succeeds.
func (e *Engine) relayAdminReply(ctx context.Context, session *state.Session, text string) {
	rs, ok := e.store.PopReplyTarget(session.UserID)
	if !ok {
		return
	}

	if _, err := e.bot.SendMessage(ctx, rs.RequesterID, MsgReplyRelayPrefix+text, nil); err != nil {
		log.Printf("[relayAdminReply] Error relaying reply to user %d (request #%d): %v", rs.RequesterID, rs.RequestID, err)
		_, _ = e.bot.SendMessage(ctx, session.UserID, MsgReplyFailed, nil)
		return
	}

	_, _ = e.bot.SendMessage(ctx, session.UserID, MsgReplySent, nil)

	if err := e.requests.SaveReply(ctx, &storage.SupportReply{
		RequestID: rs.RequestID,
		AdminID:   session.UserID,
		Message:   text,
	}); err != nil {
		log.Printf("[relayAdminReply] Error saving reply to request #%d: %v", rs.RequestID, err)
	}
}
