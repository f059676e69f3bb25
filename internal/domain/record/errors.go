package record

import "errors"

var (
	ErrSerialRequired  = errors.New("deviceSerialNumber must not be empty")
	ErrDuplicateRecord = errors.New("record with this id already exists")
	ErrInvalidStatus   = errors.New("step status must be passed, failed or skipped")
)
