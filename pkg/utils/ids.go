package utils

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GenerateMediatorID creates a unique mediator instance ID.
// Format: mediator-{8charHexUUID}
func GenerateMediatorID() string {
	return "mediator-" + generateShortUUID()
}

// GenerateWorkerID creates a human-readable worker ID for an execution group.
// Format: group-{group}-{8charHexUUID}
//
// Example:
//   - Input: group=2
//   - Output: "group-2-a3f8e2b1"
func GenerateWorkerID(group int) string {
	return "group-" + strconv.Itoa(group) + "-" + generateShortUUID()
}

// GenerateFailureID creates a full UUID for a recorded handler failure
func GenerateFailureID() string {
	return uuid.NewString()
}

// GroupFromWorkerID extracts the execution group from a worker ID.
// Returns 0 when the ID was not produced by GenerateWorkerID.
func GroupFromWorkerID(workerID string) int {
	parts := strings.Split(workerID, "-")
	if len(parts) != 3 || parts[0] != "group" {
		return 0
	}
	group, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return group
}

// generateShortUUID creates an 8-character hex string from a UUID.
// This provides sufficient uniqueness while keeping IDs compact.
func generateShortUUID() string {
	id := uuid.New()
	// Remove hyphens and take first 8 characters
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
