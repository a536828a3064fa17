package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error { return f(ctx, batch) }

func (sinkFunc) Close(context.Context) error { return nil }

// ExampleHub_Emit counts timed-out tasks delivered to a custom sink.
func ExampleHub_Emit() {
	timeouts := 0
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 1, MaxBatchWait: time.Second},
		sinkFunc(func(_ context.Context, batch []Event) error {
			for _, evt := range batch {
				if evt.Outcome == OutcomeTimeout {
					timeouts++
				}
			}
			return nil
		}))

	runID := UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	hub.Emit(Event{RunID: runID, TS: time.Unix(0, 0), Stage: StageTaskDone, Batch: 1, Outcome: OutcomeTimeout})
	hub.Emit(Event{RunID: runID, TS: time.Unix(0, 0), Stage: StageTaskDone, Batch: 1, Outcome: OutcomeHarvested})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("timed out tasks: %d\n", timeouts)
	// Output:
	// timed out tasks: 1
}
