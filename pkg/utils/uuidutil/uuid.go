package uuidutil

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// UUID random id without dashes, used for station and channel ids.
func UUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
