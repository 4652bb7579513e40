package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nearby_server/models"
	"nearby_server/utils"
)

// DefaultStoreTimeout bounds every store and oracle call when none is configured
const DefaultStoreTimeout = 3 * time.Second

// withStoreTimeout derives the per-call deadline for a store or oracle call.
func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// IngestionService accepts a user's latest position signal on one channel.
type IngestionService struct {
	Store        SignalStore
	StoreTimeout time.Duration
	Now          func() time.Time
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(store SignalStore, storeTimeout time.Duration) *IngestionService {
	return &IngestionService{Store: store, StoreTimeout: storeTimeout, Now: time.Now}
}

func (s *IngestionService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC().Truncate(time.Millisecond)
	}
	return s.Now().UTC().Truncate(time.Millisecond)
}

// UpdateSignal validates and normalizes payload for channel, then overwrites the user's
// signal on that channel with updatedAt = now. Repeating the same payload only moves updatedAt.
func (s *IngestionService) UpdateSignal(ctx context.Context, userID string, channel models.Channel, payload models.SignalPayload) (ack *models.SignalAck, err error) {
	defer func() { recordSignalUpdate(channel, err) }()

	if userID == "" {
		return nil, AuthError("missing user identity")
	}
	update, err := buildSignalUpdate(channel, payload, s.now())
	if err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.StoreTimeout)
	defer cancel()

	start := time.Now()
	profile, err := s.Store.SaveSignal(ctx, userID, update)
	observeStore("save_signal", start)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, NotFoundError("user not found")
	}
	if err != nil {
		slog.Error("failed to save signal", "user", userID, "channel", channel, "error", err)
		return nil, UpstreamError("save signal", err)
	}

	slog.Debug("signal updated", "user", userID, "channel", channel)
	return &models.SignalAck{
		Accepted:       true,
		Channel:        channel,
		UpdatedAt:      update.UpdatedAt(),
		IsDiscoverable: profile.Discoverable(),
	}, nil
}

// buildSignalUpdate checks the fields the channel needs and ignores the rest.
func buildSignalUpdate(channel models.Channel, payload models.SignalPayload, now time.Time) (models.SignalUpdate, error) {
	update := models.SignalUpdate{Channel: channel}
	switch channel {
	case models.ChannelGPS:
		fields := gpsFields{Latitude: payload.Latitude, Longitude: payload.Longitude}
		if err := checkStruct(fields); err != nil {
			return update, err
		}
		update.GPS = &models.GPSSignal{Latitude: *payload.Latitude, Longitude: *payload.Longitude, UpdatedAt: now}
	case models.ChannelWiFi:
		fields := networkFields{NetworkID: utils.NormalizeMAC(payload.NetworkID)}
		if err := checkStruct(fields); err != nil {
			return update, err
		}
		update.WiFi = &models.WiFiSignal{NetworkID: fields.NetworkID, UpdatedAt: now}
	case models.ChannelBluetooth:
		fields := deviceFields{DeviceID: utils.NormalizeMAC(payload.DeviceID)}
		if err := checkStruct(fields); err != nil {
			return update, err
		}
		update.Bluetooth = &models.BluetoothSignal{DeviceID: fields.DeviceID, UpdatedAt: now}
	default:
		return update, ValidationError("unsupported channel %q", channel)
	}
	return update, nil
}
