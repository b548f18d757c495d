package mail

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidRecipient = errors.New("mail: invalid recipient")
	ErrEmptyCode        = errors.New("mail: empty confirmation code")
	ErrSenderClosed     = errors.New("mail: sender closed")
)

// Confirmation is the message asking a user to confirm a social sign-in.
type Confirmation struct {
	To        string
	Name      string
	Provider  string
	Code      string
	ExpiresIn time.Duration
}

// Validate reports whether the message can be delivered.
func (c Confirmation) Validate() error {
	to := strings.TrimSpace(c.To)
	if to == "" || !strings.Contains(to, "@") || strings.ContainsAny(to, "\r\n") {
		return ErrInvalidRecipient
	}
	if strings.TrimSpace(c.Code) == "" {
		return ErrEmptyCode
	}
	return nil
}

// Sender delivers confirmation messages.
type Sender interface {
	SendConfirmation(ctx context.Context, msg Confirmation) error
}
