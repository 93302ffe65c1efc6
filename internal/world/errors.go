package world

import (
	"errors"
	"fmt"
	"time"

	"github.com/siohaza/coas/internal/timefmt"
)

var (
	ErrInvalidCredentials = errors.New("Invalid username or password!")
	ErrAlreadyOnline      = errors.New("A player with the same name is already logged in!")
	ErrNameTaken          = errors.New("A player with that name already exists!")
	ErrInvalidAccount     = errors.New("Invalid account details!")

	// ErrShutdown asks the tick loop to persist everything and stop.
	ErrShutdown = errors.New("shutdown requested")
)

type BannedError struct {
	Temporary bool
	Remaining time.Duration
}

func (e *BannedError) Error() string {
	if !e.Temporary {
		return "You have been banned from this server."
	}
	return "You have been banned from this server. Time remaining: " + timefmt.Format(e.Remaining)
}

type VersionError struct {
	Client string
	Server string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("A new version is available for download, Your version: %s Latest version: %s", e.Client, e.Server)
}

// PersistenceError wraps a storage failure. It is fatal to the tick loop.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func isFatal(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) || errors.Is(err, ErrShutdown)
}
