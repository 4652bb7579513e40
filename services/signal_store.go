package services

import (
	"context"
	"errors"
	"time"

	"nearby_server/models"
	"nearby_server/utils"
)

// ErrProfileNotFound is returned by a SignalStore write when the user record does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// CandidateFilter holds the predicates every candidate query shares.
type CandidateFilter struct {
	ExcludeUserID string    // the requester
	Since         time.Time // zero means no freshness bound
	Limit         int       // 0 means unbounded
}

// SignalStore is durable keyed storage of each user's latest per-channel signal and
// discoverability settings. Implementations must make SaveSignal a single atomic
// overwrite of one channel's signal plus lastSeen.
//
// The Find methods return only discoverable, active users other than
// ExcludeUserID whose relevant signal is not older than Since. The engine
// re-checks every predicate, so a store may over-return but must never drop
// a matching user.
type SignalStore interface {
	// GetProfile returns nil, nil when the user does not exist.
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	// SaveSignal overwrites one channel's signal and lastSeen, returning the profile after the write.
	SaveSignal(ctx context.Context, userID string, update models.SignalUpdate) (*models.UserProfile, error)
	// FindNearby returns users whose GPS signal lies inside box.
	FindNearby(ctx context.Context, box utils.BoundingBox, f CandidateFilter) ([]*models.UserProfile, error)
	// FindByNetwork returns users on networkID, most recently updated first.
	FindByNetwork(ctx context.Context, networkID string, f CandidateFilter) ([]*models.UserProfile, error)
	// FindByDevices returns users whose Bluetooth device id is in deviceIDs, most recently updated first.
	FindByDevices(ctx context.Context, deviceIDs []string, f CandidateFilter) ([]*models.UserProfile, error)
}

// newerFirst orders by signal time descending, then by user id, so truncating to a
// limit keeps the same users no matter how the backend enumerated them.
func newerFirst(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA < idB
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// applySignal copies the update onto profile, refreshing lastSeen.
func applySignal(profile *models.UserProfile, update models.SignalUpdate) {
	switch {
	case update.GPS != nil:
		s := *update.GPS
		profile.GPS = &s
	case update.WiFi != nil:
		s := *update.WiFi
		profile.WiFi = &s
	case update.Bluetooth != nil:
		s := *update.Bluetooth
		profile.Bluetooth = &s
	}
	seen := update.UpdatedAt()
	profile.LastSeen = &seen
}
