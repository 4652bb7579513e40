package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"nearby_server/models"
	"nearby_server/utils"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

type profileOption func(p *models.UserProfile)

func withGPS(lat, lon float64, age time.Duration) profileOption {
	return func(p *models.UserProfile) {
		p.GPS = &models.GPSSignal{Latitude: lat, Longitude: lon, UpdatedAt: testNow.Add(-age)}
	}
}

func withWiFi(networkID string, age time.Duration) profileOption {
	return func(p *models.UserProfile) {
		p.WiFi = &models.WiFiSignal{NetworkID: networkID, UpdatedAt: testNow.Add(-age)}
	}
}

func withBluetooth(deviceID string, age time.Duration) profileOption {
	return func(p *models.UserProfile) {
		p.Bluetooth = &models.BluetoothSignal{DeviceID: deviceID, UpdatedAt: testNow.Add(-age)}
	}
}

func withPrivacy(showAge, showLocation, showLastSeen bool) profileOption {
	return func(p *models.UserProfile) {
		p.Privacy = models.PrivacySettings{
			ShowAge:      boolPtr(showAge),
			ShowLocation: boolPtr(showLocation),
			ShowLastSeen: boolPtr(showLastSeen),
		}
	}
}

func hidden() profileOption {
	return func(p *models.UserProfile) { p.IsDiscoverable = false }
}

func inactive() profileOption {
	return func(p *models.UserProfile) { p.IsActive = false }
}

func testProfile(id string, opts ...profileOption) models.UserProfile {
	seen := testNow.Add(-time.Minute)
	p := models.UserProfile{
		UserID:         id,
		Name:           "User " + id,
		Username:       id,
		Age:            28,
		Email:          id + "@example.com",
		PhotoKey:       "profile-pics/" + id + ".jpg",
		IsDiscoverable: true,
		IsActive:       true,
		LastSeen:       &seen,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// countingStore records how often each SignalStore method is hit.
type countingStore struct {
	SignalStore
	gets, saves, finds atomic.Int32
}

func (s *countingStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.gets.Add(1)
	return s.SignalStore.GetProfile(ctx, userID)
}

func (s *countingStore) SaveSignal(ctx context.Context, userID string, update models.SignalUpdate) (*models.UserProfile, error) {
	s.saves.Add(1)
	return s.SignalStore.SaveSignal(ctx, userID, update)
}

func (s *countingStore) FindNearby(ctx context.Context, box utils.BoundingBox, f CandidateFilter) ([]*models.UserProfile, error) {
	s.finds.Add(1)
	return s.SignalStore.FindNearby(ctx, box, f)
}

func (s *countingStore) FindByNetwork(ctx context.Context, networkID string, f CandidateFilter) ([]*models.UserProfile, error) {
	s.finds.Add(1)
	return s.SignalStore.FindByNetwork(ctx, networkID, f)
}

func (s *countingStore) FindByDevices(ctx context.Context, deviceIDs []string, f CandidateFilter) ([]*models.UserProfile, error) {
	s.finds.Add(1)
	return s.SignalStore.FindByDevices(ctx, deviceIDs, f)
}

func (s *countingStore) total() int32 {
	return s.gets.Load() + s.saves.Load() + s.finds.Load()
}

var errStoreDown = errors.New("dial tcp 10.0.0.5:5432: connection refused")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) GetProfile(context.Context, string) (*models.UserProfile, error) {
	return nil, errStoreDown
}

func (failingStore) SaveSignal(context.Context, string, models.SignalUpdate) (*models.UserProfile, error) {
	return nil, errStoreDown
}

func (failingStore) FindNearby(context.Context, utils.BoundingBox, CandidateFilter) ([]*models.UserProfile, error) {
	return nil, errStoreDown
}

func (failingStore) FindByNetwork(context.Context, string, CandidateFilter) ([]*models.UserProfile, error) {
	return nil, errStoreDown
}

func (failingStore) FindByDevices(context.Context, []string, CandidateFilter) ([]*models.UserProfile, error) {
	return nil, errStoreDown
}

// blockingOracle waits for the deadline.
type blockingOracle struct{}

func (blockingOracle) Relationships(ctx context.Context, _ string, _ []string) (map[string]models.Relationship, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// countingOracle counts calls to the wrapped oracle.
type countingOracle struct {
	RelationshipOracle
	calls atomic.Int32
	asked atomic.Int32
}

func (o *countingOracle) Relationships(ctx context.Context, requesterID string, candidateIDs []string) (map[string]models.Relationship, error) {
	o.calls.Add(1)
	o.asked.Add(int32(len(candidateIDs)))
	return o.RelationshipOracle.Relationships(ctx, requesterID, candidateIDs)
}

type denyLimiter struct{}

func (denyLimiter) Allow(string, models.Channel) bool { return false }

type fakeSigner struct {
	err error
}

func (s fakeSigner) SignPhoto(_ context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://photos.example.com/" + key + "?sig=abc", nil
}
