package instance

import (
	"os"

	"github.com/angelmondragon/bizledger-backend/pkg/env"
)

// GetID identifies this process in logs: BIZLEDGER_INSTANCE_ID, then the
// platform dyno name, then the hostname.
func GetID() string {
	fallback := "local"
	if host, err := os.Hostname(); err == nil && host != "" {
		fallback = host
	}
	return env.First(fallback, "BIZLEDGER_INSTANCE_ID", "DYNO")
}
