// Package session assigns a correlation identifier to each generator run
// or web-service compile request, so a furthest-position diagnostic can be
// traced back to the run that produced it in aggregated logs.
package session

import "github.com/google/uuid"

// ID identifies one generation or compile-request run.
type ID uuid.UUID

// New returns a fresh run identifier.
func New() ID {
	return ID(uuid.New())
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}
