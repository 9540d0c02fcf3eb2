package ledger

import (
	"sync"
	"sync/atomic"
)

// batchState is an immutable snapshot of one batch. Writers build a new snapshot and swap it
// in; readers load the pointer and never lock.
type batchState struct {
	batch     Batch
	sensors   []SensorData
	transfers []TransferEvent
}

func (s *batchState) exists() bool {
	return s != nil && s.batch.Exists
}

// batchEntry serializes writers of one batch id.
type batchEntry struct {
	mu    sync.Mutex
	state atomic.Pointer[batchState]
}

// apply returns the snapshot that results from n. The receiver is not modified. Appends may
// reuse spare capacity of the current slices; published snapshots only ever read their own
// length, and writers are serialized, so that is safe.
func (s *batchState) apply(n Notification) (*batchState, error) {
	if n.Name == EventBatchCreated {
		if s.exists() {
			return nil, conflict("batch %d already exists", n.BatchID)
		}
		return &batchState{
			batch: Batch{
				BatchID:      n.BatchID,
				ProductName:  n.ProductName,
				Quantity:     n.Quantity,
				Creator:      n.Actor,
				CurrentOwner: n.Actor,
				Exists:       true,
			},
		}, nil
	}

	if !s.exists() {
		return nil, notFound("batch %d does not exist", n.BatchID)
	}
	next := *s
	switch n.Name {
	case EventSensorDataAdded:
		next.sensors = append(s.sensors, SensorData{
			Temperature: n.Temperature,
			Humidity:    n.Humidity,
			Location:    n.Location,
			Timestamp:   n.Timestamp,
			RecordedBy:  n.Actor,
		})
	case EventOwnershipTransferred:
		next.batch.CurrentOwner = n.Subject
		next.transfers = append(s.transfers, TransferEvent{
			From:      n.Actor,
			To:        n.Subject,
			Timestamp: n.Timestamp,
		})
	case EventArrivedAtRetailer:
		next.batch.ArrivedAtRetailer = true
		next.batch.PassedInspection = n.PassedInspection
	default:
		return nil, invalid("event %s does not apply to a batch", n.Name)
	}
	return &next, nil
}
