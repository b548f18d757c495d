package goSocialAuth

import (
	"context"
	"io"
	"log/slog"

	"github.com/MrEthical07/goSocialAuth/identity"
	"github.com/MrEthical07/goSocialAuth/internal/audit"
	"github.com/MrEthical07/goSocialAuth/internal/flows"
	"github.com/MrEthical07/goSocialAuth/pipeline"
)

// AuditEvent is one audit record of a flow run.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditSignInSuccess         = audit.EventSignInSuccess
	AuditSignInConfirmRequired = audit.EventSignInConfirmRequired
	AuditSignInFailure         = audit.EventSignInFailure
	AuditConfirmSuccess        = audit.EventConfirmSuccess
	AuditConfirmFailure        = audit.EventConfirmFailure
	AuditAuthCheck             = audit.EventAuthCheck
)

// NewJSONWriterSink writes one JSON document per event to w.
func NewJSONWriterSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink logs each event at info level.
func NewSlogSink(logger *slog.Logger) AuditSink {
	return audit.NewSlogSink(logger)
}

// NewChannelSink buffers events in a channel, mostly for tests.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) emitRun(ctx context.Context, flow string, pc *pipeline.Context, res pipeline.Result, err error) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: auditEventType(flow, res),
		Flow:      flow,
		Provider:  pipeline.StringValue(pc, flows.KeyProviderName),
		SessionID: pipeline.StringValue(pc, flows.KeySessionID),
		IP:        clientIPFromContext(ctx),
	}
	if u, ok := pipeline.Value[*identity.User](pc, flows.KeyUser); ok && u != nil {
		event.Subject = u.Username
	}

	switch r := res.(type) {
	case nil:
		event.Outcome = "error"
		if err != nil {
			event.Error = err.Error()
		}
	case pipeline.Error:
		event.Outcome = r.ResultType()
		event.Error = r.Message
	case pipeline.ExternalLoginError:
		event.Outcome = r.ResultType()
		event.Error = r.Message
	case pipeline.ConfirmSignIn:
		event.Outcome = r.ResultType()
		event.SessionID = r.SessionID
		event.Success = true
	case pipeline.Authenticated:
		event.Outcome = r.ResultType()
		event.Success = true
	case pipeline.SignInSuccess:
		event.Outcome = r.ResultType()
		event.Success = true
	default:
		event.Outcome = r.ResultType()
	}
	e.audit.Emit(ctx, event)
}

func auditEventType(flow string, res pipeline.Result) string {
	switch flow {
	case flows.FlowAuthenticate:
		return audit.EventAuthCheck
	case flows.FlowConfirmSignIn:
		if _, ok := res.(pipeline.SignInSuccess); ok {
			return audit.EventConfirmSuccess
		}
		return audit.EventConfirmFailure
	default:
		switch res.(type) {
		case pipeline.SignInSuccess:
			return audit.EventSignInSuccess
		case pipeline.ConfirmSignIn:
			return audit.EventSignInConfirmRequired
		}
		return audit.EventSignInFailure
	}
}
