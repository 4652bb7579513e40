package services

import (
	"context"
	"testing"
	"time"

	"nearby_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngestion(store SignalStore, now *time.Time) *IngestionService {
	svc := NewIngestionService(store, time.Second)
	svc.Now = func() time.Time { return *now }
	return svc
}

func TestUpdateSignal(t *testing.T) {
	ctx := context.Background()

	t.Run("gps write refreshes last seen", func(t *testing.T) {
		store := NewMemorySignalStore()
		store.PutProfile(testProfile("u1"))
		now := testNow
		svc := newIngestion(store, &now)

		ack, err := svc.UpdateSignal(ctx, "u1", models.ChannelGPS, models.SignalPayload{Latitude: floatPtr(40.7128), Longitude: floatPtr(-74.0060)})
		require.NoError(t, err)
		assert.Equal(t, &models.SignalAck{Accepted: true, Channel: models.ChannelGPS, UpdatedAt: testNow, IsDiscoverable: true}, ack)

		p, err := store.GetProfile(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, p.GPS)
		assert.Equal(t, 40.7128, p.GPS.Latitude)
		assert.Equal(t, -74.0060, p.GPS.Longitude)
		assert.Equal(t, testNow, p.GPS.UpdatedAt)
		require.NotNil(t, p.LastSeen)
		assert.Equal(t, testNow, *p.LastSeen)
	})

	t.Run("wifi and bluetooth ids are normalized", func(t *testing.T) {
		store := NewMemorySignalStore()
		store.PutProfile(testProfile("u1"))
		now := testNow
		svc := newIngestion(store, &now)

		_, err := svc.UpdateSignal(ctx, "u1", models.ChannelWiFi, models.SignalPayload{NetworkID: " aa-bb-cc-dd-ee-ff "})
		require.NoError(t, err)
		_, err = svc.UpdateSignal(ctx, "u1", models.ChannelBluetooth, models.SignalPayload{DeviceID: "01:23:45:67:89:ab"})
		require.NoError(t, err)

		p, err := store.GetProfile(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "AA:BB:CC:DD:EE:FF", p.WiFi.NetworkID)
		assert.Equal(t, "01:23:45:67:89:AB", p.Bluetooth.DeviceID)
		assert.Nil(t, p.GPS, "other channels are untouched")
	})

	t.Run("same payload twice only moves updatedAt", func(t *testing.T) {
		store := NewMemorySignalStore()
		store.PutProfile(testProfile("u1"))
		now := testNow
		svc := newIngestion(store, &now)
		payload := models.SignalPayload{NetworkID: "AA:BB:CC:DD:EE:FF"}

		_, err := svc.UpdateSignal(ctx, "u1", models.ChannelWiFi, payload)
		require.NoError(t, err)
		first, _ := store.GetProfile(ctx, "u1")

		now = testNow.Add(time.Minute)
		ack, err := svc.UpdateSignal(ctx, "u1", models.ChannelWiFi, payload)
		require.NoError(t, err)
		second, _ := store.GetProfile(ctx, "u1")

		assert.Equal(t, now, ack.UpdatedAt)
		assert.Equal(t, first.WiFi.NetworkID, second.WiFi.NetworkID)
		assert.Equal(t, now, second.WiFi.UpdatedAt)
		first.WiFi, second.WiFi, first.LastSeen, second.LastSeen = nil, nil, nil, nil
		assert.Equal(t, first, second)
	})

	t.Run("ack reports discoverability", func(t *testing.T) {
		store := NewMemorySignalStore()
		store.PutProfile(testProfile("u1", hidden()))
		now := testNow
		svc := newIngestion(store, &now)

		ack, err := svc.UpdateSignal(ctx, "u1", models.ChannelBluetooth, models.SignalPayload{DeviceID: "AA:BB:CC:DD:EE:FF"})
		require.NoError(t, err)
		assert.False(t, ack.IsDiscoverable)
	})

	t.Run("validation", func(t *testing.T) {
		store := &countingStore{SignalStore: NewMemorySignalStore()}
		now := testNow
		svc := newIngestion(store, &now)

		tests := []struct {
			name    string
			channel models.Channel
			payload models.SignalPayload
		}{
			{"missing latitude", models.ChannelGPS, models.SignalPayload{Longitude: floatPtr(0)}},
			{"missing longitude", models.ChannelGPS, models.SignalPayload{Latitude: floatPtr(0)}},
			{"latitude out of range", models.ChannelGPS, models.SignalPayload{Latitude: floatPtr(90.5), Longitude: floatPtr(0)}},
			{"longitude out of range", models.ChannelGPS, models.SignalPayload{Latitude: floatPtr(0), Longitude: floatPtr(-180.1)}},
			{"empty network", models.ChannelWiFi, models.SignalPayload{}},
			{"network is not a mac", models.ChannelWiFi, models.SignalPayload{NetworkID: "HomeWiFi"}},
			{"short device id", models.ChannelBluetooth, models.SignalPayload{DeviceID: "AA:BB:CC:DD:EE"}},
			{"unknown channel", models.Channel("nfc"), models.SignalPayload{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.UpdateSignal(ctx, "u1", tt.channel, tt.payload)
				assert.ErrorIs(t, err, ErrValidation)
			})
		}
		assert.Equal(t, int32(0), store.saves.Load())
	})

	t.Run("boundary coordinates are accepted", func(t *testing.T) {
		store := NewMemorySignalStore()
		store.PutProfile(testProfile("u1"))
		now := testNow
		svc := newIngestion(store, &now)

		_, err := svc.UpdateSignal(ctx, "u1", models.ChannelGPS, models.SignalPayload{Latitude: floatPtr(-90), Longitude: floatPtr(180)})
		assert.NoError(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		now := testNow
		svc := newIngestion(NewMemorySignalStore(), &now)

		_, err := svc.UpdateSignal(ctx, "ghost", models.ChannelWiFi, models.SignalPayload{NetworkID: "AA:BB:CC:DD:EE:FF"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing identity", func(t *testing.T) {
		now := testNow
		svc := newIngestion(NewMemorySignalStore(), &now)

		_, err := svc.UpdateSignal(ctx, "", models.ChannelWiFi, models.SignalPayload{NetworkID: "AA:BB:CC:DD:EE:FF"})
		assert.ErrorIs(t, err, ErrAuth)
	})

	t.Run("store failure", func(t *testing.T) {
		now := testNow
		svc := newIngestion(failingStore{}, &now)

		_, err := svc.UpdateSignal(ctx, "u1", models.ChannelWiFi, models.SignalPayload{NetworkID: "AA:BB:CC:DD:EE:FF"})
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Equal(t, KindUpstream, KindOf(err))
		assert.True(t, KindOf(err).Retryable())
	})
}
