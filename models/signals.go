package models

import (
	"strings"
	"time"
)

// Channel is one of the independent positioning channels a user can be discovered on.
type Channel string

const (
	ChannelGPS       Channel = "gps"
	ChannelWiFi      Channel = "wifi"
	ChannelBluetooth Channel = "bluetooth"
)

// Channels lists every supported channel
var Channels = []Channel{ChannelGPS, ChannelWiFi, ChannelBluetooth}

// ParseChannel maps a path segment such as "wifi" or "Bluetooth" to a Channel.
func ParseChannel(s string) (Channel, bool) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ChannelGPS, ChannelWiFi, ChannelBluetooth:
		return c, true
	}
	return "", false
}

// Freshness windows per channel. GPS has no engine-enforced expiry.
const (
	GPSFreshness       time.Duration = 0
	WiFiFreshness                    = 24 * time.Hour
	BluetoothFreshness               = 7 * 24 * time.Hour
)

// FreshnessWindow returns how old a channel's signal may be and still count. Zero means no limit.
func FreshnessWindow(c Channel) time.Duration {
	switch c {
	case ChannelWiFi:
		return WiFiFreshness
	case ChannelBluetooth:
		return BluetoothFreshness
	default:
		return GPSFreshness
	}
}

// IsFresh reports whether a signal written at updatedAt is still inside window at now.
func IsFresh(updatedAt, now time.Time, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	return !updatedAt.Before(now.Add(-window))
}

type GPSSignal struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type WiFiSignal struct {
	NetworkID string    `json:"networkId"` // BSSID, normalized XX:XX:XX:XX:XX:XX
	UpdatedAt time.Time `json:"updatedAt"`
}

type BluetoothSignal struct {
	DeviceID  string    `json:"deviceId"` // normalized XX:XX:XX:XX:XX:XX
	UpdatedAt time.Time `json:"updatedAt"`
}

// SignalPayload is the body of a signal update. Only the fields for the addressed channel are read.
type SignalPayload struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	NetworkID string   `json:"networkId,omitempty"`
	DeviceID  string   `json:"deviceId,omitempty"`
}

// SignalAck is returned after a signal has been written.
type SignalAck struct {
	Accepted       bool      `json:"accepted"`
	Channel        Channel   `json:"channel"`
	UpdatedAt      time.Time `json:"updatedAt"`
	IsDiscoverable bool      `json:"isDiscoverable"`
}

// SignalUpdate is a validated, normalized write for exactly one channel.
type SignalUpdate struct {
	Channel   Channel
	GPS       *GPSSignal
	WiFi      *WiFiSignal
	Bluetooth *BluetoothSignal
}

// UpdatedAt returns the timestamp of whichever signal the update carries.
func (u SignalUpdate) UpdatedAt() time.Time {
	switch {
	case u.GPS != nil:
		return u.GPS.UpdatedAt
	case u.WiFi != nil:
		return u.WiFi.UpdatedAt
	case u.Bluetooth != nil:
		return u.Bluetooth.UpdatedAt
	}
	return time.Time{}
}
