package services

import (
	"sort"
	"time"

	"nearby_server/models"
)

// rankCandidates dedupes by user id, orders per channel and truncates to MaxCandidates.
// GPS orders by distance ascending; WiFi and Bluetooth by signal recency descending.
// Ties fall back to user id so repeated calls return the same order.
func rankCandidates(channel models.Channel, in []scoredCandidate) []scoredCandidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]scoredCandidate, 0, len(in))
	for _, c := range in {
		if _, dup := seen[c.Profile.UserID]; dup {
			continue
		}
		seen[c.Profile.UserID] = struct{}{}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if channel == models.ChannelGPS && a.Proximity.DistanceMeters != nil && b.Proximity.DistanceMeters != nil {
			if da, db := *a.Proximity.DistanceMeters, *b.Proximity.DistanceMeters; da != db {
				return da < db
			}
		} else if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.Profile.UserID < b.Profile.UserID
	})

	if len(out) > models.MaxCandidates {
		out = out[:models.MaxCandidates]
	}
	return out
}

// assembleResult builds the response envelope. totalFound is the count after truncation.
func assembleResult(channel models.Channel, users []models.CandidateUser, qr *queryResult, now time.Time) *models.DiscoveryResult {
	if users == nil {
		users = []models.CandidateUser{}
	}
	if len(users) > models.MaxCandidates {
		users = users[:models.MaxCandidates]
	}
	return &models.DiscoveryResult{
		Users:          users,
		TotalFound:     len(users),
		Channel:        channel,
		ChannelContext: qr.Context,
		Message:        qr.Message,
		Timestamp:      now,
	}
}
