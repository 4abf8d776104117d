package models

import (
	"path/filepath"
	"strings"
)

// SyncPair is the (source, replica) root pair mirrored by one orchestrator.
// Both paths are expected to be absolute and fixed for the orchestrator's lifetime.
type SyncPair struct {
	SourceRoot  string
	ReplicaRoot string
}

// Validate checks the pair is usable: both roots set, distinct and not nested.
func (p SyncPair) Validate() error {
	if p.SourceRoot == "" {
		return &ValidationError{Field: "SourceRoot", Message: "source path is required"}
	}
	if p.ReplicaRoot == "" {
		return &ValidationError{Field: "ReplicaRoot", Message: "replica path is required"}
	}

	source := filepath.Clean(p.SourceRoot)
	replica := filepath.Clean(p.ReplicaRoot)

	if source == replica {
		return &ValidationError{Field: "ReplicaRoot", Message: "source and replica cannot be the same path"}
	}
	if isWithin(source, replica) {
		return &ValidationError{Field: "ReplicaRoot", Message: "replica cannot be inside the source tree"}
	}
	if isWithin(replica, source) {
		return &ValidationError{Field: "SourceRoot", Message: "source cannot be inside the replica tree"}
	}

	return nil
}

func isWithin(parent, child string) bool {
	if parent == string(filepath.Separator) {
		return strings.HasPrefix(child, parent) && child != parent
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
