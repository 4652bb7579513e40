package services

import (
	"context"
	"log/slog"
	"time"

	"nearby_server/models"
)

// Annotator attaches relationship flags to ranked candidates and projects each one
// through its owner's privacy settings.
type Annotator struct {
	Oracle  RelationshipOracle
	Photos  PhotoSigner // optional
	Timeout time.Duration
}

func (a *Annotator) annotate(ctx context.Context, requesterID string, candidates []scoredCandidate) ([]models.CandidateUser, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Profile.UserID)
	}
	rels, err := storeCall(ctx, a.Timeout, "relationships", func(ctx context.Context) (map[string]models.Relationship, error) {
		return a.Oracle.Relationships(ctx, requesterID, ids)
	})
	if err != nil {
		return nil, UpstreamError("relationships", err)
	}

	users := make([]models.CandidateUser, 0, len(candidates))
	for _, c := range candidates {
		users = append(users, projectCandidate(c, rels[c.Profile.UserID], a.photoURL(ctx, c.Profile)))
	}
	return users, nil
}

// photoURL signs the candidate's photo. A signing failure drops the photo, not the candidate.
func (a *Annotator) photoURL(ctx context.Context, p *models.UserProfile) string {
	if a.Photos == nil || p.PhotoKey == "" {
		return ""
	}
	url, err := a.Photos.SignPhoto(ctx, p.PhotoKey)
	if err != nil {
		slog.Warn("failed to sign candidate photo", "user", p.UserID, "error", err)
		return ""
	}
	return url
}

// projectCandidate copies only display fields. Email and raw network or device ids never leave here;
// age, distance and last seen are left out when the candidate has hidden them.
func projectCandidate(c scoredCandidate, rel models.Relationship, photoURL string) models.CandidateUser {
	p := c.Profile
	vis := models.Visibility{
		ShowAge:      p.Privacy.AgeVisible(),
		ShowLocation: p.Privacy.LocationVisible(),
		ShowLastSeen: p.Privacy.LastSeenVisible(),
	}

	user := models.CandidateUser{
		ID:                p.UserID,
		Name:              p.Name,
		Username:          p.Username,
		Bio:               p.Bio,
		PhotoURL:          photoURL,
		Proximity:         c.Proximity,
		IsFriend:          rel.IsFriend,
		HasPendingRequest: rel.HasPendingRequest,
		Visibility:        vis,
	}
	if vis.ShowAge && p.Age > 0 {
		age := p.Age
		user.Age = &age
	}
	if !vis.ShowLocation {
		user.Proximity.DistanceMeters = nil
		user.Proximity.Estimated = false
	}
	if vis.ShowLastSeen && p.LastSeen != nil {
		seen := *p.LastSeen
		user.LastSeen = &seen
	}
	return user
}
