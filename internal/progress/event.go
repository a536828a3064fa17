package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
	StageBatchStart Stage = "BATCH_START"
	StageBatchDone  Stage = "BATCH_DONE"
	StageTaskDone   Stage = "TASK_DONE"
	StageCheckpoint Stage = "CHECKPOINT"
)

// Outcome classifies how a fetch task ended.
type Outcome string

// Task outcomes.
const (
	OutcomeHarvested Outcome = "harvested"
	OutcomeDropped   Outcome = "dropped"
	OutcomeTimeout   Outcome = "timeout"
)

// Event is one progress milestone.
type Event struct {
	// RunID identifies the harvest run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Batch is the 1-based batch number for batch and task events.
	Batch int
	// Site is the host of the task URL.
	Site string
	URL  string
	// Outcome is set on task events.
	Outcome Outcome
	// Records counts accumulated records on batch, checkpoint and run events.
	Records int
	Dur     time.Duration
	// Note carries low-volume context such as an error or an artifact URI.
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
	case StageRunStart, StageRunDone, StageRunError, StageCheckpoint:
	case StageBatchStart, StageBatchDone:
		if e.Batch <= 0 {
			return errors.New("batch events require a batch number")
		}
	case StageTaskDone:
		if e.Batch <= 0 {
			return errors.New("task events require a batch number")
		}
		switch e.Outcome {
		case OutcomeHarvested, OutcomeDropped, OutcomeTimeout:
		default:
			return fmt.Errorf("unknown task outcome %q", e.Outcome)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Records < 0 {
		return errors.New("records must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to a uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseRunID parses a textual run ID; unparseable IDs yield the zero value,
// which Validate rejects.
func ParseRunID(s string) [16]byte {
	id, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}
	}
	return UUIDToBytes(id)
}
