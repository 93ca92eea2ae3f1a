package models

import "github.com/google/uuid"

// ensureID assigns a v4 identifier when the caller has not provided one.
// IDs are generated client-side so the same models work against sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
