// errors.go defines the client-facing error taxonomy of the admin engine.
// Validation and reference errors carry their field maps from the packages
// that produced them; this file adds the record-level and bulk failures.
package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRecordNotFound is returned when an id does not resolve within the
// requested entity type.
var ErrRecordNotFound = errors.New("record not found")

// ErrShardedEntity is returned when a generic record operation targets an
// entity stored per owner. Those records are only reachable through the
// inventory endpoints.
var ErrShardedEntity = errors.New("entity is stored per owner")

// BulkDeleteError reports the ids that blocked an all-or-nothing bulk
// delete. Nothing was deleted when this error is returned.
type BulkDeleteError struct {
	Missing []string
}

func (e *BulkDeleteError) Error() string {
	return fmt.Sprintf("bulk delete aborted, %d missing ids: %s",
		len(e.Missing), strings.Join(e.Missing, ", "))
}
