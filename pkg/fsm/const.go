package fsm

import "telegramsupportbot/pkg/state"

const (
	EventStartSupport   = "start_support_flow"
	EventStartForwarded = "start_forwarded_flow"
	EventConsentGiven   = "consent_given"
	EventNameSaved      = "name_saved"
	EventEmailSaved     = "email_saved"
	EventProblemSaved   = "problem_saved"
	EventAttachFile     = "attach_file"
	EventComplete       = "complete"
	EventCancel         = "cancel"
	EventBackToName     = "back_to_name"
	EventBackToEmail    = "back_to_email"
	EventBackToMessage  = "back_to_message"
)

const (
	CallbackStartSupport = "start_support"
	CallbackReplyPrefix  = "reply_"
)

const (
	MsgWelcome          = "Здравствуйте! Это бот технической поддержки.\nЧтобы оставить заявку, нажмите кнопку ниже или используйте команду /support."
	MsgUnknownCommand   = "Неизвестная команда."
	MsgIdleHint         = "Чтобы оставить заявку, используйте команду /support."
	MsgAlreadyActive    = "Вы уже оформляете заявку."
	MsgCancelled        = "Операция отменена.\nЧтобы оставить заявку, используйте команду /support."
	MsgSubmitFailed     = "Произошла ошибка при отправке заявки. Пожалуйста, попробуйте позже."
	MsgSubmitted        = "Ваша заявка отправлена. Спасибо!"
	MsgStaffOnly        = "Эта функция доступна только сотрудникам ТП."
	MsgNotForwarded     = "Это сообщение не является пересланным."
	MsgEnterReply       = "Введите ваш ответ:"
	MsgReplySent        = "✅ Ответ успешно отправлен!"
	MsgReplyFailed      = "❌ Ошибка отправки ответа"
	MsgReplyRelayPrefix = "📨 Ответ от поддержки:\n\n"
	MsgTooFast          = "Слишком часто. Подождите пару секунд."
	MsgActionUnavail    = "Действие недоступно."
)

// advanceEvents maps each conversation state to the event that moves the
// intake forward when its step reports Advance.
var advanceEvents = map[string]string{
	state.StateConsent:    EventConsentGiven,
	state.StateGetName:    EventNameSaved,
	state.StateGetEmail:   EventEmailSaved,
	state.StateGetMessage: EventProblemSaved,
	state.StateFileChoice: EventAttachFile,
}

// backEvents maps each state to the event fired by the "Назад" button.
var backEvents = map[string]string{
	state.StateGetEmail:   EventBackToName,
	state.StateGetMessage: EventBackToEmail,
	state.StateFileChoice: EventBackToMessage,
}
