package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StagePlayerDone Stage = "PLAYER_DONE"
	StagePageDone   Stage = "PAGE_DONE"
	StageLevelDone  Stage = "LEVEL_DONE"
	StageDetailDone Stage = "DETAIL_DONE"
	StageRunDone    Stage = "RUN_DONE"
	StageRunStopped Stage = "RUN_STOPPED"
	StageRunError   Stage = "RUN_ERROR"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	switch s {
	case StageRunDone, StageRunStopped, StageRunError:
		return true
	default:
		return false
	}
}

// Event captures a single step of a crawl run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Level is the level being crawled, 0 outside the level loop.
	Level int
	// Page is the 0-based page index for PAGE_DONE.
	Page int
	// TotalPages is the page count declared by the page selector.
	TotalPages int
	// Songs is the number of distinct songs merged so far.
	Songs int
	// Requests is the number of requests issued so far.
	Requests int
	// Dur is the wall time of the run for terminal stages.
	Dur time.Duration
	// Note carries the human-readable status line or error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StagePlayerDone, StageDetailDone, StageRunDone, StageRunStopped, StageRunError:
	case StagePageDone, StageLevelDone:
		if e.Level <= 0 {
			return fmt.Errorf("%s requires a level", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Songs < 0 || e.Requests < 0 {
		return errors.New("counters must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
