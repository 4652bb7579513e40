package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"nearby_server/models"
	"nearby_server/services"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 64 << 10

// SignalIngester writes a user's latest signal on one channel.
type SignalIngester interface {
	UpdateSignal(ctx context.Context, userID string, channel models.Channel, payload models.SignalPayload) (*models.SignalAck, error)
}

// SignalController handles signal updates
type SignalController struct {
	Ingestion SignalIngester
}

// NewSignalController creates a new SignalController instance
func NewSignalController(ingestion SignalIngester) *SignalController {
	return &SignalController{Ingestion: ingestion}
}

// UpdateSignal handles PUT /api/signal/{channel}
func (c *SignalController) UpdateSignal(w http.ResponseWriter, r *http.Request) {
	channel, ok := models.ParseChannel(mux.Vars(r)["channel"])
	if !ok {
		writeError(w, r, services.ValidationError("unknown channel %q", mux.Vars(r)["channel"]))
		return
	}

	var payload models.SignalPayload
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	ack, err := c.Ingestion.UpdateSignal(r.Context(), UserIDFromContext(r.Context()), channel, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return services.ValidationError("request body too large")
	}
	return services.ValidationError("invalid request payload")
}
