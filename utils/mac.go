package utils

import (
	"regexp"
	"strings"
)

var macAddressPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// NormalizeMAC trims, uppercases and converts hyphen separators to colons,
// so "aa-bb-cc-dd-ee-ff" and "AA:BB:CC:DD:EE:FF" compare equal.
func NormalizeMAC(id string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(id)), "-", ":")
}

// IsMAC reports whether id is already in normalized XX:XX:XX:XX:XX:XX form.
func IsMAC(id string) bool {
	return macAddressPattern.MatchString(id)
}
