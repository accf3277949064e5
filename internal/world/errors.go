package world

import (
	"errors"
	"fmt"
)

var (
	ErrSerialExhausted = errors.New("world: serial space exhausted")
	ErrSerialInUse     = errors.New("world: serial already registered")
	ErrUnknownType     = errors.New("world: unknown type tag")
	ErrWrongKind       = errors.New("world: serial outside the range of its kind")
	ErrDeleted         = errors.New("world: entity is deleted")
)

// VersionError reports a record written by a newer (or corrupt) format than
// the running code supports. It is fatal for a load.
type VersionError struct {
	Type  string
	Found int
	Max   int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("world: %s record version %d not supported (max %d)", e.Type, e.Found, e.Max)
}
