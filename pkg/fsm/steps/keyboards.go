package steps

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback identifiers carried in inline button payloads.
const (
	CallbackConsentYes = "consent_yes"
	CallbackCancel     = "cancel"
	CallbackBack       = "back"
	CallbackAttachYes  = "yes_support"
	CallbackAttachNo   = "no_support"
	CallbackSkipEmail  = "skip_email"
)

func consentKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Согласен", CallbackConsentYes),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", CallbackCancel),
		),
	)
	return &kb
}

func cancelKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", CallbackCancel),
		),
	)
	return &kb
}

func backCancelKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", CallbackCancel),
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", CallbackBack),
		),
	)
	return &kb
}

func yesNoKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📎 Да", CallbackAttachYes),
			tgbotapi.NewInlineKeyboardButtonData("Нет", CallbackAttachNo),
		),
	)
	return &kb
}

func skipCancelKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", CallbackCancel),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Пропустить", CallbackSkipEmail),
		),
	)
	return &kb
}
