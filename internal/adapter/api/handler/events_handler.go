package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/carewatch/internal/adapter/api/middleware"
	"github.com/user/carewatch/internal/adapter/metrics"
	"github.com/user/carewatch/internal/domain"
	"github.com/user/carewatch/internal/usecase"
)

// eventEnvelope is the outer callback payload posted by the messaging
// platform.
type eventEnvelope struct {
	Type      string      `json:"type"`
	Challenge string      `json:"challenge,omitempty"`
	EventID   string      `json:"event_id,omitempty"`
	Event     *innerEvent `json:"event,omitempty"`
}

type innerEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Channel     string `json:"channel"`
	User        string `json:"user"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}

// EventsHandler handles the platform's event callback endpoint. Whatever
// happens downstream it answers 200 fast; a non-200 or a slow answer only
// provokes redelivery.
type EventsHandler struct {
	useCase *usecase.IngestEventUseCase
	metrics *metrics.IntakeMetrics
	logger  *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(uc *usecase.IngestEventUseCase, m *metrics.IntakeMetrics, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{useCase: uc, metrics: m, logger: logger}
}

// ServeHTTP processes one event callback.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var envelope eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.logger.Warn("malformed event payload", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if envelope.Type == "url_verification" {
		h.metrics.Event("challenge")
		writeJSON(w, map[string]string{"challenge": envelope.Challenge})
		return
	}

	event := h.toDomainEvent(middleware.OrgID(r.Context()), &envelope)
	if event == nil {
		h.metrics.Event("ignored")
		writeOK(w)
		return
	}

	if err := h.useCase.Admit(r.Context(), event); err != nil {
		// Admission errors are logged but never surfaced: a 200 is the only
		// answer that stops the platform from redelivering.
		h.logger.Error("event admission failed", "event_id", event.ID, "error", err)
	}
	writeOK(w)
}

// toDomainEvent maps the callback to an intake event. Returns nil for
// payloads the pipeline does not handle: bot echoes, message edits, and
// unknown event types.
func (h *EventsHandler) toDomainEvent(orgID string, envelope *eventEnvelope) *domain.Event {
	if envelope.Type != "event_callback" || envelope.Event == nil {
		return nil
	}
	inner := envelope.Event
	if inner.BotID != "" || inner.Subtype != "" {
		return nil
	}

	var kind domain.EventKind
	switch inner.Type {
	case "message":
		kind = domain.EventKindMessage
	case "app_mention":
		kind = domain.EventKindMention
	default:
		return nil
	}

	return &domain.Event{
		ID:          envelope.EventID,
		Kind:        kind,
		OrgID:       orgID,
		Channel:     inner.Channel,
		TS:          inner.TS,
		ThreadTS:    inner.ThreadTS,
		User:        inner.User,
		Text:        inner.Text,
		ClientMsgID: inner.ClientMsgID,
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
