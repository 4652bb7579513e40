package services

import (
	"context"
	"log/slog"
	"time"

	"nearby_server/models"
)

// DiscoveryOptions holds the optional collaborators of a DiscoveryService.
type DiscoveryOptions struct {
	Photos           PhotoSigner
	Limiter          Limiter
	StoreTimeout     time.Duration
	BluetoothTxPower float64
}

// DiscoveryService selects, annotates and ranks nearby users on one channel per call.
type DiscoveryService struct {
	Store     SignalStore
	Annotator *Annotator
	Limiter   Limiter
	Timeout   time.Duration
	Now       func() time.Time

	queries map[models.Channel]candidateQuery
}

// NewDiscoveryService creates a DiscoveryService with one candidate query per channel.
func NewDiscoveryService(store SignalStore, oracle RelationshipOracle, opts DiscoveryOptions) *DiscoveryService {
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &DiscoveryService{
		Store:     store,
		Annotator: &Annotator{Oracle: oracle, Photos: opts.Photos, Timeout: timeout},
		Limiter:   opts.Limiter,
		Timeout:   timeout,
		Now:       time.Now,
		queries: map[models.Channel]candidateQuery{
			models.ChannelGPS:       &gpsQuery{store: store, timeout: timeout},
			models.ChannelWiFi:      &wifiQuery{store: store, timeout: timeout},
			models.ChannelBluetooth: &bluetoothQuery{store: store, timeout: timeout, txPower: opts.BluetoothTxPower},
		},
	}
}

func (s *DiscoveryService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Discover runs exactly one channel's candidate query for the requester.
// An empty signal or scan is a successful empty result carrying a guidance message.
func (s *DiscoveryService) Discover(ctx context.Context, req models.DiscoveryRequest) (result *models.DiscoveryResult, err error) {
	defer func() { recordDiscovery(req.Channel, result, err) }()

	if req.RequesterID == "" {
		return nil, AuthError("missing user identity")
	}
	query, ok := s.queries[req.Channel]
	if !ok {
		return nil, ValidationError("unknown channel %q", req.Channel)
	}
	if s.Limiter != nil && !s.Limiter.Allow(req.RequesterID, req.Channel) {
		return nil, RateLimitedError("too many discovery requests, slow down")
	}

	now := s.now()
	early, err := query.prepare(&req)
	if err != nil {
		return nil, err
	}
	if early != nil {
		return assembleResult(req.Channel, nil, early, now), nil
	}

	requester, err := storeCall(ctx, s.Timeout, "get_profile", func(ctx context.Context) (*models.UserProfile, error) {
		return s.Store.GetProfile(ctx, req.RequesterID)
	})
	if err != nil {
		slog.Error("failed to load requester", "user", req.RequesterID, "error", err)
		return nil, UpstreamError("get requester", err)
	}
	if requester == nil {
		return nil, NotFoundError("user not found")
	}

	qr, err := query.find(ctx, requester, req, now)
	if err != nil {
		slog.Error("candidate query failed", "user", req.RequesterID, "channel", req.Channel, "error", err)
		return nil, err
	}

	users, err := s.Annotator.annotate(ctx, req.RequesterID, qr.Candidates)
	if err != nil {
		slog.Error("failed to annotate candidates", "user", req.RequesterID, "channel", req.Channel, "error", err)
		return nil, err
	}

	result = assembleResult(req.Channel, users, qr, now)
	slog.Debug("discovery complete", "user", req.RequesterID, "channel", req.Channel, "found", result.TotalFound)
	return result, nil
}
