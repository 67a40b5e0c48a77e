package syncsdk

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/shelfsync/shelfsync/internal/version"
)

// DefaultDeviceID derives a stable per-machine id. The raw machine id is
// hashed with the app name so it is never sent as is.
func DefaultDeviceID() string {
	if id, err := machineid.ProtectedID(version.AppName); err == nil {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown-device"
}
