package mail

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterSender prints confirmation messages to an io.Writer. It is meant for
// development setups without a mailer.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

// SendConfirmation implements Sender.
func (s *WriterSender) SendConfirmation(ctx context.Context, msg Confirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "to=%s provider=%s code=%s expires_in=%s\n",
		msg.To, msg.Provider, msg.Code, msg.ExpiresIn)
	return err
}
