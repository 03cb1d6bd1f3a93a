package entity

import "errors"

// Domain errors surfaced by usecases and mapped to transport codes at the edges.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrDuplicateSnapshot = errors.New("snapshot already exists")
	ErrInvalidSnapshotID = errors.New("invalid snapshot ID")
	ErrInvalidStudentID  = errors.New("invalid student ID")
	ErrInvalidAsOf       = errors.New("invalid as-of date")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrNoRecordSource    = errors.New("no record source configured")
	ErrFixtureNotFound   = errors.New("fixture not found")
)
