package instance

import "os"

// GetID returns the process instance identifier used in startup logs.
// Platform-provided names win over the local default.
func GetID() string {
	for _, key := range []string{"COURSEMARKET_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
