package models

// UserProfilesTable is the DynamoDB table name for user profiles and their signals
const UserProfilesTable = "Users"

// GSIs on the Users table used by the WiFi and Bluetooth candidate queries
const (
	NetworkIDIndex = "networkId-index" // PK: networkId, SK: wifiUpdatedAt
	DeviceIDIndex  = "deviceId-index"  // PK: deviceId, SK: bluetoothUpdatedAt
)

// Guidance returned with an empty result when a channel has nothing to search with
const (
	MessageNoGPSSignal      = "Share your location to discover people nearby."
	MessageNoWiFiSignal     = "Connect to a WiFi network and share it to discover people on the same network."
	MessageNoScannedDevices = "No nearby devices were detected. Make sure Bluetooth is on and try scanning again."
)
