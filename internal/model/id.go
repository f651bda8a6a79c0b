package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string, used to identify scheduling runs and
// execution records.
func NewID() string {
	return ulid.Make().String()
}
