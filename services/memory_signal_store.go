package services

import (
	"context"
	"sort"
	"sync"

	"nearby_server/models"
	"nearby_server/utils"
)

// memoryRecord guards one user's profile. Writers lock only their own record.
type memoryRecord struct {
	mu      sync.RWMutex
	profile models.UserProfile
}

func (r *memoryRecord) snapshot() *models.UserProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.profile
	if p.GPS != nil {
		s := *p.GPS
		p.GPS = &s
	}
	if p.WiFi != nil {
		s := *p.WiFi
		p.WiFi = &s
	}
	if p.Bluetooth != nil {
		s := *p.Bluetooth
		p.Bluetooth = &s
	}
	if p.LastSeen != nil {
		t := *p.LastSeen
		p.LastSeen = &t
	}
	return &p
}

// MemorySignalStore is an in-process SignalStore for local development and tests.
type MemorySignalStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord

	// AutoCreate makes SaveSignal create a discoverable profile for unknown users
	// instead of failing. Only meant for running the server locally.
	AutoCreate bool
}

// NewMemorySignalStore creates an empty store.
func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{records: make(map[string]*memoryRecord)}
}

// PutProfile creates or replaces a user record, standing in for the external profile store.
func (s *MemorySignalStore) PutProfile(profile models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[profile.UserID] = &memoryRecord{profile: profile}
}

func (s *MemorySignalStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	r, ok := s.records[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.snapshot(), nil
}

func (s *MemorySignalStore) SaveSignal(ctx context.Context, userID string, update models.SignalUpdate) (*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := s.recordForWrite(userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	applySignal(&r.profile, update)
	r.mu.Unlock()
	return r.snapshot(), nil
}

func (s *MemorySignalStore) recordForWrite(userID string) (*memoryRecord, error) {
	s.mu.RLock()
	r, ok := s.records[userID]
	s.mu.RUnlock()
	if ok {
		return r, nil
	}
	if !s.AutoCreate {
		return nil, ErrProfileNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[userID]; ok {
		return r, nil
	}
	r = &memoryRecord{profile: models.UserProfile{UserID: userID, Name: userID, IsDiscoverable: true, IsActive: true}}
	s.records[userID] = r
	return r, nil
}

// each calls fn with a snapshot of every discoverable user other than the excluded one.
func (s *MemorySignalStore) each(f CandidateFilter, fn func(p *models.UserProfile)) {
	s.mu.RLock()
	records := make([]*memoryRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mu.RUnlock()

	for _, r := range records {
		p := r.snapshot()
		if p.UserID == f.ExcludeUserID || !p.Discoverable() {
			continue
		}
		fn(p)
	}
}

func (s *MemorySignalStore) FindNearby(ctx context.Context, box utils.BoundingBox, f CandidateFilter) ([]*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*models.UserProfile
	s.each(f, func(p *models.UserProfile) {
		if p.GPS == nil || !box.Contains(p.GPS.Latitude, p.GPS.Longitude) {
			return
		}
		if !f.Since.IsZero() && p.GPS.UpdatedAt.Before(f.Since) {
			return
		}
		out = append(out, p)
	})
	return out, nil
}

func (s *MemorySignalStore) FindByNetwork(ctx context.Context, networkID string, f CandidateFilter) ([]*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*models.UserProfile
	s.each(f, func(p *models.UserProfile) {
		if p.WiFi == nil || p.WiFi.NetworkID != networkID || p.WiFi.UpdatedAt.Before(f.Since) {
			return
		}
		out = append(out, p)
	})
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].WiFi.UpdatedAt, out[j].WiFi.UpdatedAt, out[i].UserID, out[j].UserID)
	})
	return limitProfiles(out, f.Limit), nil
}

func (s *MemorySignalStore) FindByDevices(ctx context.Context, deviceIDs []string, f CandidateFilter) ([]*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(deviceIDs))
	for _, id := range deviceIDs {
		wanted[id] = struct{}{}
	}
	var out []*models.UserProfile
	s.each(f, func(p *models.UserProfile) {
		if p.Bluetooth == nil || p.Bluetooth.UpdatedAt.Before(f.Since) {
			return
		}
		if _, ok := wanted[p.Bluetooth.DeviceID]; ok {
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Bluetooth.UpdatedAt, out[j].Bluetooth.UpdatedAt, out[i].UserID, out[j].UserID)
	})
	return limitProfiles(out, f.Limit), nil
}

func limitProfiles(ps []*models.UserProfile, limit int) []*models.UserProfile {
	if limit > 0 && len(ps) > limit {
		return ps[:limit]
	}
	return ps
}
