package models

// Action represents what a pass did (or would do) with a single entry
type Action string

const (
	// ActionCreate copies a file missing from the replica
	ActionCreate Action = "create"
	// ActionUpdate re-copies a replica file whose content differs
	ActionUpdate Action = "update"
	// ActionDelete removes a replica file or directory absent from the source
	ActionDelete Action = "delete"
	// ActionMkdir creates a missing replica directory
	ActionMkdir Action = "mkdir"
	// ActionCompare hashes both sides of a file pair
	ActionCompare Action = "compare"
	// ActionList enumerates a directory
	ActionList Action = "list"
	// ActionSkip leaves an entry untouched (already in sync or excluded)
	ActionSkip Action = "skip"
)
