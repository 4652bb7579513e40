package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"nearby_server/models"
	"nearby_server/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDiscoverer struct {
	got    models.DiscoveryRequest
	result *models.DiscoveryResult
	err    error
}

func (s *stubDiscoverer) Discover(_ context.Context, req models.DiscoveryRequest) (*models.DiscoveryResult, error) {
	s.got = req
	return s.result, s.err
}

type stubIngester struct {
	userID  string
	channel models.Channel
	payload models.SignalPayload
	err     error
}

func (s *stubIngester) UpdateSignal(_ context.Context, userID string, channel models.Channel, payload models.SignalPayload) (*models.SignalAck, error) {
	s.userID, s.channel, s.payload = userID, channel, payload
	if s.err != nil {
		return nil, s.err
	}
	return &models.SignalAck{Accepted: true, Channel: channel}, nil
}

func newTestRouter(d Discoverer, i SignalIngester) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(RequireUser(HeaderAuthenticator{}))
	api.HandleFunc("/discover/{channel}", NewDiscoveryController(d).Discover).Methods("GET", "POST")
	api.HandleFunc("/signal/{channel}", NewSignalController(i).UpdateSignal).Methods("PUT")
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDiscoverRequestParsing(t *testing.T) {
	d := &stubDiscoverer{result: &models.DiscoveryResult{Users: []models.CandidateUser{}}}
	router := newTestRouter(d, &stubIngester{})

	t.Run("gps radius from the query", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/discover/GPS?radius=750", "", "me")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "me", d.got.RequesterID)
		assert.Equal(t, models.ChannelGPS, d.got.Channel)
		assert.Equal(t, 750, d.got.GPS.RadiusMeters)
	})

	t.Run("gps radius absent", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/discover/gps", "", "me")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, d.got.GPS.RadiusMeters)
	})

	t.Run("gps radius not a number", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/discover/gps?radius=far", "", "me")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decodeError(t, rec).Error)
	})

	t.Run("bluetooth body", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/discover/bluetooth",
			`{"observedDeviceIds":["aa:bb:cc:dd:ee:ff"],"rssi":{"aa:bb:cc:dd:ee:ff":-60}}`, "me")
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, d.got.Bluetooth)
		assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, d.got.Bluetooth.ObservedDeviceIDs)
		assert.Equal(t, -60, d.got.Bluetooth.RSSI["aa:bb:cc:dd:ee:ff"])
	})

	t.Run("bluetooth malformed body", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/discover/bluetooth", `{"observedDeviceIds":`, "me")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown channel", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/discover/nfc", "", "me")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing identity", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/discover/wifi", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "auth_error", decodeError(t, rec).Error)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ValidationError("radius must be at least 100"), http.StatusBadRequest},
		{services.AuthError("missing user identity"), http.StatusUnauthorized},
		{services.PermissionError("location access denied"), http.StatusForbidden},
		{services.NotFoundError("user not found"), http.StatusNotFound},
		{services.RateLimitedError("slow down"), http.StatusTooManyRequests},
		{services.UpstreamError("find nearby", errors.New("pq: password authentication failed for user nearby")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			router := newTestRouter(&stubDiscoverer{err: tt.err}, &stubIngester{})
			rec := do(t, router, http.MethodGet, "/api/discover/wifi", "", "me")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "pq:")
			assert.NotContains(t, rec.Body.String(), "boom")
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
		})
	}

	t.Run("rate limited carries Retry-After", func(t *testing.T) {
		router := newTestRouter(&stubDiscoverer{err: services.RateLimitedError("slow down")}, &stubIngester{})
		rec := do(t, router, http.MethodGet, "/api/discover/wifi", "", "me")
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.True(t, decodeError(t, rec).Retryable)
	})
}

func TestUpdateSignalHandler(t *testing.T) {
	ingester := &stubIngester{}
	router := newTestRouter(&stubDiscoverer{}, ingester)

	rec := do(t, router, http.MethodPut, "/api/signal/gps", `{"latitude":40.7128,"longitude":-74.006}`, "me")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "me", ingester.userID)
	assert.Equal(t, models.ChannelGPS, ingester.channel)
	require.NotNil(t, ingester.payload.Latitude)
	assert.Equal(t, 40.7128, *ingester.payload.Latitude)

	var ack models.SignalAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Accepted)

	rec = do(t, router, http.MethodPut, "/api/signal/gps", `not json`, "me")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/api/signal/gps", "{\"latitude\":\""+strings.Repeat("9", maxBodyBytes)+"\"}", "me")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/signal/gps", `{}`, "me")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDPassthrough(t *testing.T) {
	router := newTestRouter(&stubDiscoverer{result: &models.DiscoveryResult{}}, &stubIngester{})
	req := httptest.NewRequest(http.MethodGet, "/api/discover/wifi", nil)
	req.Header.Set(UserIDHeader, "me")
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}
