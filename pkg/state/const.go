package state

// Conversation step identifiers shared by the engine and the step registry.
const (
	StateIdle           = "idle"
	StateConsent        = "get_consent"
	StateGetName        = "get_name"
	StateGetEmail       = "get_email"
	StateGetMessage     = "get_message"
	StateFileChoice     = "get_file_choice"
	StateFileUpload     = "get_file_upload"
	StateForwardedEmail = "get_email_forwarded"
)
