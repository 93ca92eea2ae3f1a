package instance

import (
	"os"

	"github.com/angelmondragon/pos-backend/pkg/env"
)

// GetID identifies this process in logs. POS_INSTANCE_ID wins, then the
// platform dyno name, then the host name.
func GetID(service string) string {
	if id := env.First("POS_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return service + "-0"
}
