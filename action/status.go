package action

import (
	"fmt"
	"strings"
)

// Signature is what a remote answers to the version probe.
const Signature = "MdxRemote_V1"

const (
	StatusReconnect = "Reconnect Remote Control"
	StatusLooking   = "Looking for Remote Control"
)

func StatusDetected(where string) string {
	return fmt.Sprintf("Detected Remote Control on %s", where)
}

var statusMarkers = []string{"Detected Remote", "Reconnect Remote", "Looking for Remote"}

// IsStatus reports whether a line is a connection status message rather
// than a command from the remote.
func IsStatus(line string) bool {
	for _, m := range statusMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// IsIdentity reports whether a line is the remote identifying itself.
func IsIdentity(line string) bool {
	return strings.Contains(line, Signature)
}
