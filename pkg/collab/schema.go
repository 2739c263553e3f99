package collab

import (
	"fmt"
	"regexp"
)

// MaxInstanceNameLength is the maximum length for an instance name.
const MaxInstanceNameLength = 63

// instanceNamePattern: lowercase alphanumeric, hyphens allowed but not at start/end.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// RunEventsChannel returns the Pub/Sub channel name for run events.
// Pattern: collab:{instance_name}:run_events
func RunEventsChannel(instanceName string) string {
	return fmt.Sprintf("collab:%s:run_events", instanceName)
}

// ValidateInstanceName checks an instance name is safe to embed in Redis keys.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceNameLength)
	}

	if !instanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}
