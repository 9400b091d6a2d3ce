package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventRelaySubmission    EventType = "relay_submission"
	EventAssociationStore   EventType = "association_store"
	EventAssociationApprove EventType = "association_approve"
	EventFeedbackIssue      EventType = "feedback_issue"
	EventValidationRespond  EventType = "validation_respond"
	EventRateLimitExceed    EventType = "rate_limit_exceeded"
	EventAuthFailure        EventType = "auth_failure"
)

type Event struct {
	Type      EventType
	AgentID   uint64
	ChainID   int64
	Handle    string
	Digest    string
	CallCount int
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "operations").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.AgentID != 0 {
		logger = logger.With().Uint64("agent_id", event.AgentID).Logger()
	}
	if event.ChainID != 0 {
		logger = logger.With().Int64("chain_id", event.ChainID).Logger()
	}
	if event.Handle != "" {
		logger = logger.With().Str("handle", event.Handle).Logger()
	}
	if event.Digest != "" {
		logger = logger.With().Str("digest", event.Digest).Logger()
	}
	if event.CallCount != 0 {
		logger = logger.With().Int("call_count", event.CallCount).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("operation audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case uint64:
		return e.Uint64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
