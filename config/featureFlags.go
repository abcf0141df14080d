package config

import (
	"os"
	"strings"
)

// StrictMovementGuard enables the per-item advisory lock + conditional
// decrement path for quantity movements. Off means plain read-then-write
// (legacy behavior; racy under concurrent moves of the same allocation).
//
// Set via env:
// - STRICT_MOVEMENT_GUARD=true
func StrictMovementGuard() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_MOVEMENT_GUARD")))
	// Default on: only an explicit "false"/"0" disables the guard.
	if v == "" {
		return true
	}
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// ReminderDispatcherEnabled gates the background packaging-reminder loop.
//
// Set via env:
// - REMINDER_DISPATCHER=true
func ReminderDispatcherEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REMINDER_DISPATCHER")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
