package config

import (
	"fmt"
)

// BotConfig is the declarative bot configuration loaded from YAML.
// Secrets (token, passwords, database credentials) come from the
// environment, see env.go.
type BotConfig struct {
	// AdminIDs is the staff allow-list: these users receive new-request
	// notifications, may use the forwarded-message shortcut and get
	// startup/shutdown pings.
	AdminIDs []int64 `yaml:"admin_ids"`

	Consent  ConsentConfig  `yaml:"consent"`
	Email    EmailConfig    `yaml:"email"`
	Files    FilesConfig    `yaml:"files"`
	Ops      OpsConfig      `yaml:"ops,omitempty"`
	Throttle ThrottleConfig `yaml:"throttle,omitempty"`
}

// ConsentConfig gates the personal-data consent step at the start of the flow.
type ConsentConfig struct {
	Enabled   bool   `yaml:"enabled"`
	PolicyURL string `yaml:"policy_url,omitempty"`
}

// EmailConfig describes the outgoing SMTP sink. The password is read from EMAIL_PASSWORD.
type EmailConfig struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	User       string   `yaml:"user"`
	Recipients []string `yaml:"recipients"`
	Subject    string   `yaml:"subject,omitempty"`
}

// FilesConfig controls temporary attachment storage.
type FilesConfig struct {
	TempDir string `yaml:"temp_dir"`
}

// OpsConfig enables the health/readiness HTTP listener when Addr is set.
type OpsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// ThrottleConfig limits how often a user may hit the command entry points.
type ThrottleConfig struct {
	CommandCooldownSeconds int `yaml:"command_cooldown_seconds,omitempty"`
}

const defaultEmailSubject = "Вопрос от пользователя через чат технической поддержки"

const defaultTempDir = "temp_files"

func (bc *BotConfig) Validate() error {
	if bc == nil {
		return fmt.Errorf("config is nil")
	}
	if len(bc.AdminIDs) == 0 {
		return fmt.Errorf("config validation failed: admin_ids is empty")
	}
	for i, id := range bc.AdminIDs {
		if id == 0 {
			return fmt.Errorf("config validation failed: admin_ids[%d] is zero", i)
		}
	}
	if bc.Consent.Enabled && bc.Consent.PolicyURL == "" {
		return fmt.Errorf("config validation failed: consent is enabled but policy_url is empty")
	}
	if bc.Email.Host != "" {
		if bc.Email.Port == 0 {
			return fmt.Errorf("config validation failed: email.host is set but email.port is not")
		}
		if len(bc.Email.Recipients) == 0 {
			return fmt.Errorf("config validation failed: email.host is set but email.recipients is empty")
		}
	}
	if bc.Throttle.CommandCooldownSeconds < 0 {
		return fmt.Errorf("config validation failed: throttle.command_cooldown_seconds is negative")
	}
	return nil
}

func (bc *BotConfig) applyDefaults() {
	if bc.Email.Subject == "" {
		bc.Email.Subject = defaultEmailSubject
	}
	if bc.Files.TempDir == "" {
		bc.Files.TempDir = defaultTempDir
	}
	if bc.Throttle.CommandCooldownSeconds == 0 {
		bc.Throttle.CommandCooldownSeconds = 2
	}
}

// IsAdmin reports whether the given user id is in the staff allow-list.
func (bc *BotConfig) IsAdmin(userID int64) bool {
	for _, id := range bc.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
