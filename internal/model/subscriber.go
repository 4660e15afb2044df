package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPendingConfirmation = "pending_confirmation"
	StatusConfirmed           = "confirmed"
)

type Subscriber struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Status    string
	CreatedAt time.Time
}

// forbidden in any part of a subscriber email or name
var forbiddenCharacters = []string{"/", "(", ")", `"`, "<", ">", `\`, "{", "}"}

// NormalizeEmail validates a candidate address and returns it lowercased.
func NormalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("email must not be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%q is not a valid email address", raw)
	}
	for _, c := range forbiddenCharacters {
		if strings.Contains(email, c) {
			return "", fmt.Errorf("%q is not a valid email address", raw)
		}
	}
	return strings.ToLower(email), nil
}

// ValidateName rejects empty, overlong, and injection-prone subscriber names.
func ValidateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("name must not be empty")
	}
	if len([]rune(name)) > 256 {
		return "", fmt.Errorf("name must not exceed 256 characters")
	}
	for _, c := range forbiddenCharacters {
		if strings.Contains(name, c) {
			return "", fmt.Errorf("name contains forbidden character %q", c)
		}
	}
	return name, nil
}
