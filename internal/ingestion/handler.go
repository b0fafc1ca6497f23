package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	v1 "github.com/aevon-lab/segmentd/internal/api/v1"
	httperr "github.com/aevon-lab/segmentd/internal/core/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgReadBodyFailed   = "Failed to read request body"
	msgInvalidJSON      = "Invalid JSON body"
	msgEmptyBatch       = "Request must contain at least one event"
	msgPersistFailed    = "Failed to persist events"
	msgStoreUnavailable = "Event store temporarily unavailable, retry later"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	reason     string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler accepts a single event object or a JSON array of events.
// The batch is appended atomically: one invalid event rejects all of them.
func (s *Service) IngestHandler(c *gin.Context) {
	events, payloadSize, err := s.parseEvents(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.validateEvents(events); err != nil {
		writeError(c, err)
		return
	}

	slog.Debug("[Ingestion] Received events",
		"count", len(events),
		"payload_size", payloadSize)

	if err := s.persistEvents(c.Request.Context(), events); err != nil {
		writeError(c, err)
		return
	}

	eventsAccepted.Add(float64(len(events)))

	// Events are in the log. The next accumulate cycle picks them up.
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "accepted": len(events)})
}

// parseEvents reads the raw request body and binds it into events.
// Returns the parsed events and the raw payload size (used for structured logging upstream).
func (s *Service) parseEvents(c *gin.Context) ([]*v1.Event, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			reason:     reasonInvalidJSON,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			reason:     reasonTooLarge,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	var events []*v1.Event
	if isJSONArray(bodyBytes) {
		err = json.Unmarshal(bodyBytes, &events)
	} else {
		var evt v1.Event
		err = json.Unmarshal(bodyBytes, &evt)
		events = []*v1.Event{&evt}
	}
	if err != nil {
		slog.Warn("[Ingestion] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			reason:     reasonInvalidJSON,
			message:    msgInvalidJSON,
		}
	}

	// processing_time is always the time we receive the request
	receivedAt := s.now().UTC()
	for _, evt := range events {
		if evt == nil {
			continue
		}
		evt.ProcessingTime = receivedAt
		if evt.MessageID == "" {
			evt.MessageID = uuid.NewString()
		}
	}
	return events, len(bodyBytes), nil
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// validateEvents checks every event before anything is written.
func (s *Service) validateEvents(events []*v1.Event) *ingestionError {
	if len(events) == 0 {
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			reason:     reasonValidation,
			message:    msgEmptyBatch,
		}
	}

	if err := v1.ValidateBatch(events); err != nil {
		slog.Warn("[Ingestion] Event validation failed", "error", err, "count", len(events))
		return validationError(err)
	}
	return nil
}

func validationError(err error) *ingestionError {
	ie := &ingestionError{
		statusCode: http.StatusBadRequest,
		errorType:  httperr.HttpValidationError,
		reason:     reasonValidation,
		message:    err.Error(),
	}
	var ve *httperr.ValidationError
	if errors.As(err, &ve) {
		ie.details = map[string]interface{}{
			"index": ve.Index,
			"field": ve.Field,
		}
	}
	return ie
}

// persistEvents appends the batch to the event log.
func (s *Service) persistEvents(ctx context.Context, events []*v1.Event) *ingestionError {
	err := s.store.Append(ctx, events)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, httperr.ErrValidation):
		return validationError(err)
	case httperr.IsTransient(err):
		slog.Warn("[Ingestion] Event store unavailable", "error", err, "count", len(events))
		return &ingestionError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpStoreUnavailableError,
			reason:     reasonStoreUnavailable,
			message:    msgStoreUnavailable,
		}
	default:
		slog.Error("[Ingestion] Failed to persist events", "error", err, "count", len(events))
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			reason:     reasonStoreError,
			message:    msgPersistFailed,
		}
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	eventsRejected.WithLabelValues(err.reason).Inc()
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
