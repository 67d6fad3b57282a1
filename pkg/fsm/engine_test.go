package fsm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"telegramsupportbot/pkg/bot/fakeadapter"
	"telegramsupportbot/pkg/config"
	"telegramsupportbot/pkg/filestore"
	"telegramsupportbot/pkg/fsm/steps"
	"telegramsupportbot/pkg/mailer"
	"telegramsupportbot/pkg/state"
	"telegramsupportbot/pkg/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type scriptedDownloader struct {
	mu   sync.Mutex
	path string
	err  error
}

func (d *scriptedDownloader) Download(_ context.Context, _ filestore.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	return d.path, nil
}

func (d *scriptedDownloader) set(path string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
	d.err = err
}

// testDownloader backs the shared step registry across all engine tests.
var testDownloader = &scriptedDownloader{}

type fakeRequestStore struct {
	mu       sync.Mutex
	requests []*storage.SupportRequest
	replies  []*storage.SupportReply
	failSave error
}

func (f *fakeRequestStore) SaveRequest(_ context.Context, req *storage.SupportRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return f.failSave
	}
	req.ID = uint(len(f.requests) + 1)
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeRequestStore) SaveReply(_ context.Context, reply *storage.SupportReply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply)
	return nil
}

type fakeMailSender struct {
	mu       sync.Mutex
	messages []string
	attached [][]string
	failSend error
}

func (f *fakeMailSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend != nil {
		return f.failSend
	}
	f.messages = append(f.messages, msg.HTMLBody)
	f.attached = append(f.attached, msg.Attachments)
	return nil
}

func newTestEngine(withConsent bool) (*Engine, *fakeadapter.FakeAdapter, *fakeRequestStore, *fakeMailSender) {
	steps.RegisterBuiltins(steps.Deps{Files: testDownloader})
	testDownloader.set("", nil)

	adapter := &fakeadapter.FakeAdapter{}
	cfg := &config.BotConfig{
		AdminIDs: []int64{100, 101},
		Consent:  config.ConsentConfig{Enabled: withConsent, PolicyURL: "https://example.com/policy"},
		Email:    config.EmailConfig{Subject: "Вопрос от пользователя через чат технической поддержки"},
	}
	store := state.NewStore(NewFSMCreator(withConsent))
	requests := &fakeRequestStore{}
	mail := &fakeMailSender{}
	engine := NewEngine(adapter, cfg, store, requests, mail)
	return engine, adapter, requests, mail
}

func commandUpdate(userID int64, command string) tgbotapi.Update {
	text := "/" + command
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Иван", LastName: "Петров", UserName: "ivan_p"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		},
	}}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Иван", LastName: "Петров", UserName: "ivan_p"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

func callbackUpdate(userID int64, data string, messageID int) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID, FirstName: "Иван", LastName: "Петров", UserName: "ivan_p"},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
		Data: data,
	}}
}

func documentUpdate(userID int64, fileID, fileName string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, FirstName: "Иван", LastName: "Петров", UserName: "ivan_p"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Document: &tgbotapi.Document{FileID: fileID, FileName: fileName},
	}}
}

func forwardedUpdate(staffID int64, fwdFrom *tgbotapi.User, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:        &tgbotapi.User{ID: staffID, FirstName: "Ольга", UserName: "olga_support"},
		Chat:        &tgbotapi.Chat{ID: staffID},
		Text:        text,
		ForwardFrom: fwdFrom,
		ForwardDate: 1741961366,
	}}
}

func currentState(t *testing.T, engine *Engine, userID int64) string {
	t.Helper()
	session, ok := engine.store.Get(userID)
	if !ok {
		return state.StateIdle
	}
	return session.State()
}

func TestFullIntakeWithoutConsent(t *testing.T) {
	engine, adapter, requests, mail := newTestEngine(false)
	ctx := context.Background()
	const userID int64 = 42

	engine.HandleUpdate(ctx, commandUpdate(userID, "support"))
	if got := currentState(t, engine, userID); got != state.StateGetName {
		t.Fatalf("expected state %s after /support, got %s", state.StateGetName, got)
	}

	engine.HandleUpdate(ctx, textUpdate(userID, "Иван Петров"))
	if got := currentState(t, engine, userID); got != state.StateGetEmail {
		t.Fatalf("expected state %s after name, got %s", state.StateGetEmail, got)
	}

	engine.HandleUpdate(ctx, textUpdate(userID, " IVAN@Example.com "))
	if got := currentState(t, engine, userID); got != state.StateGetMessage {
		t.Fatalf("expected state %s after email, got %s", state.StateGetMessage, got)
	}

	engine.HandleUpdate(ctx, textUpdate(userID, "Не работает вход в личный кабинет"))
	if got := currentState(t, engine, userID); got != state.StateFileChoice {
		t.Fatalf("expected state %s after problem, got %s", state.StateFileChoice, got)
	}

	engine.HandleUpdate(ctx, callbackUpdate(userID, steps.CallbackAttachNo, 7))

	if len(requests.requests) != 1 {
		t.Fatalf("expected one saved request, got %d", len(requests.requests))
	}
	req := requests.requests[0]
	if req.UserID != userID || req.Name != "Иван Петров" {
		t.Fatalf("unexpected request identity: %+v", req)
	}
	if req.Email == nil || *req.Email != "ivan@example.com" {
		t.Fatalf("expected normalized email, got %+v", req.Email)
	}
	if req.Message != "Не работает вход в личный кабинет" {
		t.Fatalf("unexpected request message '%s'", req.Message)
	}
	if req.AdminID != nil {
		t.Fatalf("expected direct request without staff submitter, got %+v", req.AdminID)
	}

	adminNotifies := 0
	ackSeen := false
	for _, c := range adapter.Calls {
		if c.Op != "send_message" {
			continue
		}
		if (c.ChatID == 100 || c.ChatID == 101) && strings.Contains(c.Text, "Новая заявка") {
			adminNotifies++
		}
		if c.ChatID == userID && c.Text == MsgSubmitted {
			ackSeen = true
		}
	}
	if adminNotifies != 2 {
		t.Fatalf("expected 2 admin notifications, got %d", adminNotifies)
	}
	if !ackSeen {
		t.Fatalf("expected acknowledgement '%s' sent to user", MsgSubmitted)
	}

	if len(mail.messages) != 1 {
		t.Fatalf("expected one email copy, got %d", len(mail.messages))
	}
	if !strings.Contains(mail.messages[0], "ivan@example.com") {
		t.Fatalf("expected email body to carry the address, got '%s'", mail.messages[0])
	}

	if engine.store.Has(userID) {
		t.Fatalf("expected session removed after completion")
	}
}

func TestConsentGateAsksBeforeName(t *testing.T) {
	engine, adapter, _, _ := newTestEngine(true)
	ctx := context.Background()
	const userID int64 = 43

	engine.HandleUpdate(ctx, commandUpdate(userID, "support"))
	if got := currentState(t, engine, userID); got != state.StateConsent {
		t.Fatalf("expected state %s after /support, got %s", state.StateConsent, got)
	}
	call := adapter.LastCall("send_message")
	if call == nil || !strings.Contains(call.Text, "согласие") {
		t.Fatalf("expected consent prompt, got %+v", call)
	}

	engine.HandleUpdate(ctx, callbackUpdate(userID, steps.CallbackConsentYes, call.MessageID))
	if got := currentState(t, engine, userID); got != state.StateGetName {
		t.Fatalf("expected state %s after consent, got %s", state.StateGetName, got)
	}
}

func TestCancelClearsSession(t *testing.T) {
	engine, adapter, requests, _ := newTestEngine(false)
	ctx := context.Background()
	const userID int64 = 44

	engine.HandleUpdate(ctx, commandUpdate(userID, "support"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Иван"))
	prompt := adapter.LastCall("send_message")

	engine.HandleUpdate(ctx, callbackUpdate(userID, steps.CallbackCancel, prompt.MessageID))

	if engine.store.Has(userID) {
		t.Fatalf("expected session removed after cancel")
	}
	if len(requests.requests) != 0 {
		t.Fatalf("expected no saved requests after cancel, got %d", len(requests.requests))
	}
	edit := adapter.LastCall("edit_message")
	if edit == nil || edit.Text != MsgCancelled {
		t.Fatalf("expected cancel confirmation edit, got %+v", edit)
	}
}

func TestBackReturnsToPreviousQuestion(t *testing.T) {
	engine, _, _, _ := newTestEngine(false)
	ctx := context.Background()
	const userID int64 = 45

	engine.HandleUpdate(ctx, commandUpdate(userID, "support"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Иван"))
	if got := currentState(t, engine, userID); got != state.StateGetEmail {
		t.Fatalf("expected state %s, got %s", state.StateGetEmail, got)
	}

	engine.HandleUpdate(ctx, callbackUpdate(userID, steps.CallbackBack, 3))
	if got := currentState(t, engine, userID); got != state.StateGetName {
		t.Fatalf("expected back to %s, got %s", state.StateGetName, got)
	}
}

func TestAttachmentFlowDeliversDocument(t *testing.T) {
	engine, adapter, requests, mail := newTestEngine(false)
	testDownloader.set("temp_files/20250314_150926_log.txt", nil)
	ctx := context.Background()
	const userID int64 = 46

	engine.HandleUpdate(ctx, commandUpdate(userID, "support"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Иван"))
	engine.HandleUpdate(ctx, textUpdate(userID, "ivan@example.com"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Приложение падает"))
	engine.HandleUpdate(ctx, callbackUpdate(userID, steps.CallbackAttachYes, 5))
	if got := currentState(t, engine, userID); got != state.StateFileUpload {
		t.Fatalf("expected state %s, got %s", state.StateFileUpload, got)
	}

	// Text instead of a file keeps the step waiting.
	engine.HandleUpdate(ctx, textUpdate(userID, "вот файл"))
	if got := currentState(t, engine, userID); got != state.StateFileUpload {
		t.Fatalf("expected upload step to repeat on text, got %s", got)
	}

	engine.HandleUpdate(ctx, documentUpdate(userID, "file-abc", "log.txt"))

	if len(requests.requests) != 1 {
		t.Fatalf("expected one saved request, got %d", len(requests.requests))
	}
	req := requests.requests[0]
	if req.AttachmentPath == nil || *req.AttachmentPath != "temp_files/20250314_150926_log.txt" {
		t.Fatalf("unexpected attachment path: %+v", req.AttachmentPath)
	}
	if req.AttachmentKind == nil || *req.AttachmentKind != storage.KindDocument {
		t.Fatalf("unexpected attachment kind: %+v", req.AttachmentKind)
	}

	if n := adapter.CountCalls("send_document"); n != 2 {
		t.Fatalf("expected document forwarded to both admins, got %d sends", n)
	}
	if len(mail.attached) != 1 || len(mail.attached[0]) != 1 {
		t.Fatalf("expected email with one attachment, got %+v", mail.attached)
	}
}

func TestPersistFailureAbortsFanout(t *testing.T) {
	engine, adapter, requests, mail := newTestEngine(false)
	requests.failSave = errors.New("connection refused")
	ctx := context.Background()
	const userID int64 = 47

	engine.HandleUpdate(ctx, commandUpdate(userID, "support"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Иван"))
	engine.HandleUpdate(ctx, textUpdate(userID, "ivan@example.com"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Проблема"))
	engine.HandleUpdate(ctx, callbackUpdate(userID, steps.CallbackAttachNo, 5))

	for _, c := range adapter.Calls {
		if c.Op == "send_message" && (c.ChatID == 100 || c.ChatID == 101) {
			t.Fatalf("expected no admin notifications after persist failure, got %+v", c)
		}
	}
	if len(mail.messages) != 0 {
		t.Fatalf("expected no email after persist failure, got %d", len(mail.messages))
	}
	failMsg := adapter.LastCall("send_message")
	if failMsg == nil || failMsg.ChatID != userID || failMsg.Text != MsgSubmitFailed {
		t.Fatalf("expected failure notice to user, got %+v", failMsg)
	}
	if engine.store.Has(userID) {
		t.Fatalf("expected session cleared after persist failure")
	}
}

func TestNotifyFailureDoesNotBlockRest(t *testing.T) {
	engine, adapter, requests, mail := newTestEngine(false)
	ctx := context.Background()
	const userID int64 = 48

	engine.HandleUpdate(ctx, commandUpdate(userID, "support"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Иван"))
	engine.HandleUpdate(ctx, textUpdate(userID, "ivan@example.com"))
	engine.HandleUpdate(ctx, textUpdate(userID, "Проблема"))

	// The first admin delivery fails, the second one and the ack go through.
	adapter.Fail("send_message", errors.New("blocked by user"))
	engine.HandleUpdate(ctx, callbackUpdate(userID, steps.CallbackAttachNo, 5))

	if len(requests.requests) != 1 {
		t.Fatalf("expected the request to stay persisted, got %d", len(requests.requests))
	}
	if len(mail.messages) != 1 {
		t.Fatalf("expected email still sent, got %d", len(mail.messages))
	}

	secondAdmin := false
	ackSeen := false
	for _, c := range adapter.Calls {
		if c.Op != "send_message" {
			continue
		}
		if c.ChatID == 101 && strings.Contains(c.Text, "Новая заявка") {
			secondAdmin = true
		}
		if c.ChatID == userID && c.Text == MsgSubmitted {
			ackSeen = true
		}
	}
	if !secondAdmin {
		t.Fatalf("expected second admin still notified")
	}
	if !ackSeen {
		t.Fatalf("expected user acknowledged despite notify failure")
	}
}

func TestForwardedShortcutFilesOnBehalfOfUser(t *testing.T) {
	engine, adapter, requests, _ := newTestEngine(false)
	ctx := context.Background()
	const staffID int64 = 100

	requester := &tgbotapi.User{ID: 555, FirstName: "Мария", UserName: "maria_k"}
	engine.HandleUpdate(ctx, forwardedUpdate(staffID, requester, "Не приходит письмо с подтверждением"))
	if got := currentState(t, engine, staffID); got != state.StateForwardedEmail {
		t.Fatalf("expected state %s after forward, got %s", state.StateForwardedEmail, got)
	}

	prompt := adapter.LastCall("send_message")
	engine.HandleUpdate(ctx, callbackUpdate(staffID, steps.CallbackSkipEmail, prompt.MessageID))

	if len(requests.requests) != 1 {
		t.Fatalf("expected one saved request, got %d", len(requests.requests))
	}
	req := requests.requests[0]
	if req.UserID != 555 {
		t.Fatalf("expected request filed for the forwarded user, got %d", req.UserID)
	}
	if req.UserUsername == nil || *req.UserUsername != "maria_k" {
		t.Fatalf("unexpected requester username: %+v", req.UserUsername)
	}
	if req.Email != nil {
		t.Fatalf("expected email absent after skip, got %+v", req.Email)
	}
	if req.AdminID == nil || *req.AdminID != staffID {
		t.Fatalf("expected staff submitter recorded, got %+v", req.AdminID)
	}
	if req.Message != "Не приходит письмо с подтверждением" {
		t.Fatalf("unexpected forwarded problem text '%s'", req.Message)
	}
	if engine.store.Has(staffID) {
		t.Fatalf("expected staff session cleared after completion")
	}
}

func TestForwardedShortcutRejectsNonStaff(t *testing.T) {
	engine, adapter, requests, _ := newTestEngine(false)
	ctx := context.Background()
	const userID int64 = 77

	requester := &tgbotapi.User{ID: 555, FirstName: "Мария"}
	engine.HandleUpdate(ctx, forwardedUpdate(userID, requester, "переслал"))

	if got := currentState(t, engine, userID); got != state.StateIdle {
		t.Fatalf("expected user left idle, got %s", got)
	}
	if len(requests.requests) != 0 {
		t.Fatalf("expected no request filed, got %d", len(requests.requests))
	}
	call := adapter.LastCall("send_message")
	if call == nil || call.Text != MsgStaffOnly {
		t.Fatalf("expected staff-only rejection, got %+v", call)
	}
}

func TestForwardedShortcutRequiresVisibleOrigin(t *testing.T) {
	engine, adapter, _, _ := newTestEngine(false)
	ctx := context.Background()

	engine.HandleUpdate(ctx, forwardedUpdate(100, nil, "скрытый отправитель"))

	if got := currentState(t, engine, 100); got != state.StateIdle {
		t.Fatalf("expected staff left idle, got %s", got)
	}
	call := adapter.LastCall("send_message")
	if call == nil || call.Text != MsgNotForwarded {
		t.Fatalf("expected hidden-origin rejection, got %+v", call)
	}
}

func TestAdminReplyRelay(t *testing.T) {
	engine, adapter, requests, _ := newTestEngine(false)
	ctx := context.Background()
	const adminID int64 = 100

	engine.HandleUpdate(ctx, callbackUpdate(adminID, "reply_7_555", 9))
	prompt := adapter.LastCall("send_message")
	if prompt == nil || prompt.Text != MsgEnterReply {
		t.Fatalf("expected reply prompt, got %+v", prompt)
	}

	engine.HandleUpdate(ctx, textUpdate(adminID, "Проверьте папку «Спам»."))

	relayed := false
	confirmed := false
	for _, c := range adapter.Calls {
		if c.Op != "send_message" {
			continue
		}
		if c.ChatID == 555 && c.Text == MsgReplyRelayPrefix+"Проверьте папку «Спам»." {
			relayed = true
		}
		if c.ChatID == adminID && c.Text == MsgReplySent {
			confirmed = true
		}
	}
	if !relayed {
		t.Fatalf("expected reply relayed to requester")
	}
	if !confirmed {
		t.Fatalf("expected confirmation sent to admin")
	}

	if len(requests.replies) != 1 {
		t.Fatalf("expected one saved reply, got %d", len(requests.replies))
	}
	reply := requests.replies[0]
	if reply.RequestID != 7 || reply.AdminID != adminID {
		t.Fatalf("unexpected reply record: %+v", reply)
	}

	if engine.store.HasReplyTarget(adminID) {
		t.Fatalf("expected reply session consumed")
	}
}

func TestAdminReplyFailureReportsAndConsumesSession(t *testing.T) {
	engine, adapter, requests, _ := newTestEngine(false)
	ctx := context.Background()
	const adminID int64 = 100

	engine.HandleUpdate(ctx, callbackUpdate(adminID, "reply_3_999", 9))
	adapter.Fail("send_message", errors.New("bot was blocked by the user"))
	engine.HandleUpdate(ctx, textUpdate(adminID, "Ответ"))

	failMsg := adapter.LastCall("send_message")
	if failMsg == nil || failMsg.ChatID != adminID || failMsg.Text != MsgReplyFailed {
		t.Fatalf("expected delivery failure notice, got %+v", failMsg)
	}
	if len(requests.replies) != 0 {
		t.Fatalf("expected no reply saved on failure, got %d", len(requests.replies))
	}
	if engine.store.HasReplyTarget(adminID) {
		t.Fatalf("expected reply session consumed even on failure")
	}
}

func TestReplyCallbackRejectsNonStaff(t *testing.T) {
	engine, adapter, _, _ := newTestEngine(false)
	ctx := context.Background()

	engine.HandleUpdate(ctx, callbackUpdate(77, "reply_7_555", 9))

	if engine.store.HasReplyTarget(77) {
		t.Fatalf("expected no reply session for non-staff user")
	}
	call := adapter.LastCall("send_message")
	if call == nil || call.Text != MsgStaffOnly {
		t.Fatalf("expected staff-only rejection, got %+v", call)
	}
}

func TestUnknownCommandAndIdleText(t *testing.T) {
	engine, adapter, _, _ := newTestEngine(false)
	ctx := context.Background()
	const userID int64 = 50

	engine.HandleUpdate(ctx, commandUpdate(userID, "frobnicate"))
	call := adapter.LastCall("send_message")
	if call == nil || call.Text != MsgUnknownCommand {
		t.Fatalf("expected unknown-command notice, got %+v", call)
	}

	engine.HandleUpdate(ctx, textUpdate(userID, "привет"))
	call = adapter.LastCall("send_message")
	if call == nil || call.Text != MsgIdleHint {
		t.Fatalf("expected idle hint, got %+v", call)
	}
}

func TestStartSendsWelcomeButton(t *testing.T) {
	engine, adapter, _, _ := newTestEngine(false)
	ctx := context.Background()

	engine.HandleUpdate(ctx, commandUpdate(51, "start"))

	call := adapter.LastCall("send_message")
	if call == nil || !strings.Contains(call.Text, "технической поддержки") {
		t.Fatalf("expected welcome message, got %+v", call)
	}
	markup, ok := call.Markup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 {
		t.Fatalf("expected inline keyboard with start button, got %+v", call.Markup)
	}
	data := markup.InlineKeyboard[0][0].CallbackData
	if data == nil || *data != CallbackStartSupport {
		t.Fatalf("unexpected start button payload: %v", data)
	}
}

func TestStartSupportCallbackEntersFlow(t *testing.T) {
	engine, _, _, _ := newTestEngine(false)
	ctx := context.Background()
	const userID int64 = 52

	engine.HandleUpdate(ctx, callbackUpdate(userID, CallbackStartSupport, 2))
	if got := currentState(t, engine, userID); got != state.StateGetName {
		t.Fatalf("expected state %s after start button, got %s", state.StateGetName, got)
	}
}
