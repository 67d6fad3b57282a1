package validate

import (
	"regexp"
	"strings"
)

const (
	maxEmailLength = 255
	maxLocalLength = 64
	maxLabelLength = 63
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// Email checks an email address and returns a human-readable reason on failure.
// Checks short-circuit in order; the input is not modified.
func Email(email string) (bool, string) {
	if strings.TrimSpace(email) == "" {
		return false, "Email не может быть пустым"
	}

	email = strings.ToLower(strings.TrimSpace(email))

	if len(email) > maxEmailLength {
		return false, "Email слишком длинный (максимум 255 символов)"
	}

	if !strings.Contains(email, "@") {
		return false, "Email должен содержать символ @"
	}

	if strings.Count(email, "@") != 1 {
		return false, "Email должен содержать ровно один символ @"
	}

	if !emailPattern.MatchString(email) {
		return false, "Некорректный формат email"
	}

	localPart, domain, _ := strings.Cut(email, "@")

	if localPart == "" {
		return false, "Отсутствует локальная часть email"
	}
	if len(localPart) > maxLocalLength {
		return false, "Локальная часть email слишком длинная (максимум 64 символа)"
	}

	if domain == "" {
		return false, "Отсутствует доменная часть email"
	}
	if !strings.Contains(domain, ".") {
		return false, "Некорректный домен (должен содержать минимум одну точку)"
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if label == "" || len(label) > maxLabelLength {
			return false, "Некорректное доменное имя (части не должны быть пустыми и длиннее 63 символов)"
		}
	}
	if digitsOnly.MatchString(labels[len(labels)-1]) {
		return false, "Последняя часть домена не может состоять только из цифр"
	}

	return true, ""
}

// NormalizeEmail returns the canonical stored form of an accepted address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
