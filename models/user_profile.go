package models

import "time"

// Discovery range bounds, in meters
const (
	DefaultDiscoveryRangeMeters = 5000
	MinDiscoveryRangeMeters     = 100
	MaxDiscoveryRangeMeters     = 50000
)

// PrivacySettings controls which optional fields a user exposes to people discovering them.
// A nil flag means the user never set it and it counts as shown.
type PrivacySettings struct {
	ShowAge      *bool `dynamodbav:"showAge,omitempty" json:"showAge,omitempty"`
	ShowLocation *bool `dynamodbav:"showLocation,omitempty" json:"showLocation,omitempty"`
	ShowLastSeen *bool `dynamodbav:"showLastSeen,omitempty" json:"showLastSeen,omitempty"`
}

func (p PrivacySettings) AgeVisible() bool      { return p.ShowAge == nil || *p.ShowAge }
func (p PrivacySettings) LocationVisible() bool { return p.ShowLocation == nil || *p.ShowLocation }
func (p PrivacySettings) LastSeenVisible() bool { return p.ShowLastSeen == nil || *p.ShowLastSeen }

// UserProfile is a user's discoverability profile together with their latest signal per channel.
// The profile itself is owned by the profile store; the engine only writes signals and lastSeen.
type UserProfile struct {
	UserID               string          `json:"userId"`
	Name                 string          `json:"name,omitempty"`
	Username             string          `json:"username,omitempty"`
	Bio                  string          `json:"bio,omitempty"`
	Age                  int             `json:"age,omitempty"`
	PhotoKey             string          `json:"photoKey,omitempty"` // S3 object key of the primary photo
	Email                string          `json:"-"`
	IsDiscoverable       bool            `json:"isDiscoverable"`
	IsActive             bool            `json:"isActive"`
	DiscoveryRangeMeters int             `json:"discoveryRangeMeters"`
	Privacy              PrivacySettings `json:"privacySettings"`
	LastSeen             *time.Time      `json:"lastSeen,omitempty"`

	GPS       *GPSSignal       `json:"-"`
	WiFi      *WiFiSignal      `json:"-"`
	Bluetooth *BluetoothSignal `json:"-"`
}

// RangeMeters returns the stored discovery range clamped to the allowed bounds,
// falling back to the default when unset.
func (p *UserProfile) RangeMeters() int {
	switch {
	case p.DiscoveryRangeMeters == 0:
		return DefaultDiscoveryRangeMeters
	case p.DiscoveryRangeMeters < MinDiscoveryRangeMeters:
		return MinDiscoveryRangeMeters
	case p.DiscoveryRangeMeters > MaxDiscoveryRangeMeters:
		return MaxDiscoveryRangeMeters
	}
	return p.DiscoveryRangeMeters
}

// Discoverable reports whether the profile may appear in any candidate query.
func (p *UserProfile) Discoverable() bool {
	return p.IsDiscoverable && p.IsActive
}
