package models

import "time"

// MaxCandidates caps the number of users returned by any channel
const MaxCandidates = 50

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GPSParams are the channel parameters of a GPS discovery. A zero radius means the default.
type GPSParams struct {
	RadiusMeters int `json:"radius" validate:"omitempty,gte=100,lte=50000"`
}

// MaxScannedDevices bounds the distinct device ids one Bluetooth discovery may carry.
const MaxScannedDevices = 256

// BluetoothParams carries the ids seen during a local radio scan, plus optional RSSI readings in dBm.
type BluetoothParams struct {
	ObservedDeviceIDs []string       `json:"observedDeviceIds"`
	RSSI              map[string]int `json:"rssi,omitempty"`
}

// DiscoveryRequest asks for candidates near RequesterID on exactly one channel.
type DiscoveryRequest struct {
	RequesterID string
	Channel     Channel
	GPS         *GPSParams
	Bluetooth   *BluetoothParams
}

// Proximity describes how near a candidate is on the channel that found them.
type Proximity struct {
	Channel        Channel  `json:"channel"`
	Adjacent       bool     `json:"adjacent"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
	Estimated      bool     `json:"estimated,omitempty"` // distance is an advisory RSSI estimate
}

// Visibility records which privacy-gated fields the candidate allowed.
type Visibility struct {
	ShowAge      bool `json:"showAge"`
	ShowLocation bool `json:"showLocation"`
	ShowLastSeen bool `json:"showLastSeen"`
}

// CandidateUser is the annotated, privacy-projected view of one discovered user. Never persisted.
type CandidateUser struct {
	ID                string     `json:"id"`
	Name              string     `json:"name,omitempty"`
	Username          string     `json:"username,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	PhotoURL          string     `json:"photoUrl,omitempty"`
	Age               *int       `json:"age,omitempty"`
	LastSeen          *time.Time `json:"lastSeen,omitempty"`
	Proximity         Proximity  `json:"proximity"`
	IsFriend          bool       `json:"isFriend"`
	HasPendingRequest bool       `json:"hasPendingRequest"`
	Visibility        Visibility `json:"visibility"`
}

// ChannelContext echoes the channel-specific search parameters back to the caller.
type ChannelContext struct {
	RadiusMeters   int       `json:"radiusMeters,omitempty"`
	Center         *GeoPoint `json:"center,omitempty"`
	NetworkID      string    `json:"networkId,omitempty"`
	ScannedDevices *int      `json:"scannedDevices,omitempty"`
}

// DiscoveryResult is the response envelope of a discovery request.
type DiscoveryResult struct {
	Users          []CandidateUser `json:"users"`
	TotalFound     int             `json:"totalFound"`
	Channel        Channel         `json:"channel"`
	ChannelContext *ChannelContext `json:"channelContext,omitempty"`
	Message        string          `json:"message,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
