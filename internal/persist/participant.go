package persist

import (
	"fmt"
	"regexp"
	"time"

	"github.com/runeshard/server/internal/world"
)

// Participant is subsystem state saved next to the entity tables, such as
// the account table. Its payload may reference entities by Serial; those
// references resolve because participants load after every entity.
type Participant interface {
	Name() string
	Serialize(w *world.Writer)
	Deserialize(r *world.Reader) error
}

var participantName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

func validParticipantName(name string) error {
	if !participantName.MatchString(name) {
		return fmt.Errorf("persist: invalid participant name %q", name)
	}
	return nil
}

func safeParticipantSerialize(p Participant, w *world.Writer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("serialize participant %s: panic: %v", p.Name(), rec)
		}
	}()
	p.Serialize(w)
	return nil
}

func safeParticipantDeserialize(p Participant, r *world.Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("participant %s: panic: %v", p.Name(), rec)
		}
	}()
	return p.Deserialize(r)
}

// SaveInfo describes a committed snapshot. It is passed to OnSaved hooks.
type SaveInfo struct {
	Path     string
	SavedAt  time.Time
	Mobiles  int
	Items    int
	Bytes    int64
	Checksum string
	Duration time.Duration
}

// LoadInfo describes a finished load. It is passed to OnLoaded hooks.
type LoadInfo struct {
	Path     string
	SavedAt  time.Time
	Mobiles  int
	Items    int
	Dropped  int
	Empty    bool // no snapshot on disk; the world starts empty
	Duration time.Duration
}

// Recorder receives save and load measurements. observe.Metrics implements it.
type Recorder interface {
	RecordSave(d time.Duration, entities int, err error)
	RecordLoad(d time.Duration, dropped int)
}
