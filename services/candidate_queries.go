package services

import (
	"context"
	"time"

	"nearby_server/models"
	"nearby_server/utils"
)

// scoredCandidate is a candidate that passed every channel predicate, before annotation.
type scoredCandidate struct {
	Profile   *models.UserProfile
	Proximity models.Proximity
	// UpdatedAt of the signal that matched, used for recency ordering
	UpdatedAt time.Time
}

// queryResult is what a channel strategy hands to the annotator.
type queryResult struct {
	Candidates []scoredCandidate
	Context    *models.ChannelContext
	Message    string
}

// candidateQuery is one channel's selection strategy.
type candidateQuery interface {
	// prepare validates and normalizes the request's channel parameters. A non-nil
	// result ends the request immediately without touching the store.
	prepare(req *models.DiscoveryRequest) (*queryResult, error)
	// find selects, filters, orders and caps candidates for requester.
	find(ctx context.Context, requester *models.UserProfile, req models.DiscoveryRequest, now time.Time) (*queryResult, error)
}

// storeCall runs one store call under its own deadline and records its latency.
func storeCall[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := withStoreTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	v, err := fn(ctx)
	observeStore(op, start)
	return v, err
}

// eligible applies the predicates every channel shares.
func eligible(p *models.UserProfile, requesterID string) bool {
	return p != nil && p.UserID != requesterID && p.Discoverable()
}

// gpsQuery finds users whose stored coordinates lie within the radius, nearest first.
type gpsQuery struct {
	store   SignalStore
	timeout time.Duration
}

func (q *gpsQuery) prepare(req *models.DiscoveryRequest) (*queryResult, error) {
	if req.GPS == nil {
		req.GPS = &models.GPSParams{}
	}
	if err := checkStruct(req.GPS); err != nil {
		return nil, err
	}
	return nil, nil
}

func (q *gpsQuery) find(ctx context.Context, requester *models.UserProfile, req models.DiscoveryRequest, now time.Time) (*queryResult, error) {
	radius := req.GPS.RadiusMeters
	if radius == 0 {
		radius = requester.RangeMeters()
	}
	if requester.GPS == nil {
		return &queryResult{Message: models.MessageNoGPSSignal, Context: &models.ChannelContext{RadiusMeters: radius}}, nil
	}

	center := requester.GPS
	box := utils.BoundingBoxAround(center.Latitude, center.Longitude, float64(radius))
	window := models.FreshnessWindow(models.ChannelGPS)
	filter := CandidateFilter{ExcludeUserID: requester.UserID}
	if window > 0 {
		filter.Since = now.Add(-window)
	}

	found, err := storeCall(ctx, q.timeout, "find_nearby", func(ctx context.Context) ([]*models.UserProfile, error) {
		return q.store.FindNearby(ctx, box, filter)
	})
	if err != nil {
		return nil, UpstreamError("find nearby", err)
	}

	var candidates []scoredCandidate
	for _, p := range found {
		if !eligible(p, requester.UserID) || p.GPS == nil || !models.IsFresh(p.GPS.UpdatedAt, now, window) {
			continue
		}
		d := utils.HaversineDistance(center.Latitude, center.Longitude, p.GPS.Latitude, p.GPS.Longitude)
		if d > float64(radius) {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			Profile:   p,
			Proximity: models.Proximity{Channel: models.ChannelGPS, DistanceMeters: &d},
			UpdatedAt: p.GPS.UpdatedAt,
		})
	}

	return &queryResult{
		Candidates: rankCandidates(models.ChannelGPS, candidates),
		Context: &models.ChannelContext{
			RadiusMeters: radius,
			Center:       &models.GeoPoint{Latitude: center.Latitude, Longitude: center.Longitude},
		},
	}, nil
}

// wifiQuery finds users on the requester's own network, most recent first.
type wifiQuery struct {
	store   SignalStore
	timeout time.Duration
}

func (q *wifiQuery) prepare(*models.DiscoveryRequest) (*queryResult, error) {
	return nil, nil
}

func (q *wifiQuery) find(ctx context.Context, requester *models.UserProfile, _ models.DiscoveryRequest, now time.Time) (*queryResult, error) {
	if requester.WiFi == nil || requester.WiFi.NetworkID == "" {
		return &queryResult{Message: models.MessageNoWiFiSignal}, nil
	}

	networkID := requester.WiFi.NetworkID
	window := models.FreshnessWindow(models.ChannelWiFi)
	filter := CandidateFilter{ExcludeUserID: requester.UserID, Since: now.Add(-window), Limit: models.MaxCandidates}

	found, err := storeCall(ctx, q.timeout, "find_by_network", func(ctx context.Context) ([]*models.UserProfile, error) {
		return q.store.FindByNetwork(ctx, networkID, filter)
	})
	if err != nil {
		return nil, UpstreamError("find by network", err)
	}

	var candidates []scoredCandidate
	for _, p := range found {
		if !eligible(p, requester.UserID) || p.WiFi == nil || p.WiFi.NetworkID != networkID {
			continue
		}
		if !models.IsFresh(p.WiFi.UpdatedAt, now, window) {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			Profile:   p,
			Proximity: models.Proximity{Channel: models.ChannelWiFi, Adjacent: true},
			UpdatedAt: p.WiFi.UpdatedAt,
		})
	}

	return &queryResult{
		Candidates: rankCandidates(models.ChannelWiFi, candidates),
		Context:    &models.ChannelContext{NetworkID: networkID},
	}, nil
}

// bluetoothQuery intersects the caller's scan with stored device ids, most recent first.
type bluetoothQuery struct {
	store   SignalStore
	timeout time.Duration
	// txPower is the expected RSSI at one meter for the distance estimate
	txPower float64
}

func (q *bluetoothQuery) prepare(req *models.DiscoveryRequest) (*queryResult, error) {
	if req.Bluetooth == nil {
		req.Bluetooth = &models.BluetoothParams{}
	}
	params := req.Bluetooth

	seen := make(map[string]struct{}, len(params.ObservedDeviceIDs))
	ids := make([]string, 0, len(params.ObservedDeviceIDs))
	for _, raw := range params.ObservedDeviceIDs {
		id := utils.NormalizeMAC(raw)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := checkStruct(scanFields{ObservedDeviceIDs: ids}); err != nil {
		return nil, err
	}

	if len(params.RSSI) > 0 {
		rssi := make(map[string]int, len(params.RSSI))
		for id, dbm := range params.RSSI {
			rssi[utils.NormalizeMAC(id)] = dbm
		}
		params.RSSI = rssi
	}
	params.ObservedDeviceIDs = ids

	if len(ids) == 0 {
		scanned := 0
		return &queryResult{
			Message: models.MessageNoScannedDevices,
			Context: &models.ChannelContext{ScannedDevices: &scanned},
		}, nil
	}
	return nil, nil
}

func (q *bluetoothQuery) find(ctx context.Context, requester *models.UserProfile, req models.DiscoveryRequest, now time.Time) (*queryResult, error) {
	params := req.Bluetooth
	scanned := len(params.ObservedDeviceIDs)
	observed := make(map[string]struct{}, scanned)
	for _, id := range params.ObservedDeviceIDs {
		observed[id] = struct{}{}
	}

	window := models.FreshnessWindow(models.ChannelBluetooth)
	filter := CandidateFilter{ExcludeUserID: requester.UserID, Since: now.Add(-window), Limit: models.MaxCandidates}

	found, err := storeCall(ctx, q.timeout, "find_by_devices", func(ctx context.Context) ([]*models.UserProfile, error) {
		return q.store.FindByDevices(ctx, params.ObservedDeviceIDs, filter)
	})
	if err != nil {
		return nil, UpstreamError("find by devices", err)
	}

	var candidates []scoredCandidate
	for _, p := range found {
		if !eligible(p, requester.UserID) || p.Bluetooth == nil {
			continue
		}
		if _, ok := observed[p.Bluetooth.DeviceID]; !ok || !models.IsFresh(p.Bluetooth.UpdatedAt, now, window) {
			continue
		}
		prox := models.Proximity{Channel: models.ChannelBluetooth, Adjacent: true}
		if dbm, ok := params.RSSI[p.Bluetooth.DeviceID]; ok {
			d := utils.EstimateRSSIDistance(float64(dbm), q.txPower, utils.DefaultPathLossExponent)
			prox.DistanceMeters = &d
			prox.Estimated = true
		}
		candidates = append(candidates, scoredCandidate{Profile: p, Proximity: prox, UpdatedAt: p.Bluetooth.UpdatedAt})
	}

	return &queryResult{
		Candidates: rankCandidates(models.ChannelBluetooth, candidates),
		Context:    &models.ChannelContext{ScannedDevices: &scanned},
	}, nil
}
