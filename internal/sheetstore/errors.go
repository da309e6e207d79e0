package sheetstore

import "errors"

var (
	// ErrBackendUnavailable wraps every failure talking to the tabular backend.
	// Auth, transport and service errors are not distinguished at this layer.
	ErrBackendUnavailable = errors.New("spreadsheet backend unavailable")

	// ErrConfiguration is returned when a store is built without a backend or
	// spreadsheet id.
	ErrConfiguration = errors.New("spreadsheet store misconfigured")

	// ErrInvalidRecord is returned when a record is missing a field required
	// to persist it. It indicates a caller bug, not bad sheet data.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrNotFound is only returned by stores built with WithStrictUpdate.
	ErrNotFound = errors.New("record not found")
)
