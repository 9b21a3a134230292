// errors/sync_errors.go
package errors

import "errors"

var (
	ErrGroupNotFound           = errors.New("group not found")
	ErrSubjectNotFound         = errors.New("subject not found")
	ErrSyncMarkerNotFound      = errors.New("sync marker attribute not found")
	ErrDeprovisionNotSupported = errors.New("user deprovisioning is not supported yet")
	ErrConnectorLocked         = errors.New("another connector instance holds the run lock")
	ErrDatabaseOperation       = errors.New("database operation failed")
)
