package persistence

import "errors"

var (
	ErrEmptyDocument     = errors.New("snapshot document is empty")
	ErrChecksumMismatch  = errors.New("snapshot checksum mismatch")
	ErrUnsupportedSchema = errors.New("unsupported snapshot schema version")
	ErrNoPath            = errors.New("snapshot path is empty")
	ErrLegacyPending     = errors.New("legacy files left on disk, manual import required")
)
