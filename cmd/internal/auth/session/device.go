package session

import "strings"

const derivedDevicePrefix = "web:"

// DeriveDeviceID resolves the lineage's device identifier. A client-supplied
// id wins; otherwise one is derived from the user agent so that repeat
// logins from the same browser fold into a recognizable device label.
func DeriveDeviceID(explicit, userAgent string) string {
	if d := strings.TrimSpace(explicit); d != "" {
		return d
	}
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		return derivedDevicePrefix + "unknown"
	}
	if len(ua) > 40 {
		ua = ua[:40]
	}
	return derivedDevicePrefix + ua
}
