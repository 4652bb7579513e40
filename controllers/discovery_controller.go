package controllers

import (
	"context"
	"net/http"
	"strconv"

	"nearby_server/models"
	"nearby_server/services"

	"github.com/gorilla/mux"
)

// Discoverer runs a discovery on one channel.
type Discoverer interface {
	Discover(ctx context.Context, req models.DiscoveryRequest) (*models.DiscoveryResult, error)
}

// DiscoveryController handles discovery requests
type DiscoveryController struct {
	Discovery Discoverer
}

// NewDiscoveryController creates a new DiscoveryController instance
func NewDiscoveryController(discovery Discoverer) *DiscoveryController {
	return &DiscoveryController{Discovery: discovery}
}

// Discover handles GET|POST /api/discover/{channel}.
// GPS takes ?radius= in meters, WiFi takes nothing, Bluetooth takes
// {"observedDeviceIds": [...], "rssi": {"id": dBm}} in the body.
func (c *DiscoveryController) Discover(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["channel"]
	channel, ok := models.ParseChannel(raw)
	if !ok {
		writeError(w, r, services.ValidationError("unknown channel %q", raw))
		return
	}

	req := models.DiscoveryRequest{RequesterID: UserIDFromContext(r.Context()), Channel: channel}
	switch channel {
	case models.ChannelGPS:
		params, err := gpsParams(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.GPS = params
	case models.ChannelBluetooth:
		var params models.BluetoothParams
		if err := decodeBody(w, r, &params); err != nil {
			writeError(w, r, err)
			return
		}
		req.Bluetooth = &params
	}

	result, err := c.Discovery.Discover(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// gpsParams reads the radius from the query string, or from a JSON body on POST.
func gpsParams(w http.ResponseWriter, r *http.Request) (*models.GPSParams, error) {
	params := &models.GPSParams{}
	if v := r.URL.Query().Get("radius"); v != "" {
		radius, err := strconv.Atoi(v)
		if err != nil {
			return nil, services.ValidationError("radius must be a whole number of meters")
		}
		if radius <= 0 {
			return nil, services.ValidationError("radius must be at least %d", models.MinDiscoveryRangeMeters)
		}
		params.RadiusMeters = radius
		return params, nil
	}
	if r.Method == http.MethodPost {
		if err := decodeBody(w, r, params); err != nil {
			return nil, err
		}
	}
	return params, nil
}
