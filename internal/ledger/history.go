package ledger

// snapshot returns the published state of id, or nil when the batch was never created.
func (l *Ledger) snapshot(id uint64) *batchState {
	e := l.entry(id, false)
	if e == nil {
		return nil
	}
	s := e.state.Load()
	if !s.exists() {
		return nil
	}
	return s
}

// GetBatch returns the batch record. Unknown ids yield a zero Batch with Exists false.
func (l *Ledger) GetBatch(batchID uint64) Batch {
	if s := l.snapshot(batchID); s != nil {
		return s.batch
	}
	return Batch{}
}

// GetBatchHistory composes the batch record with both of its logs. Absence is reported in-band
// through Batch.Exists; the logs are then empty. The returned slices are copies.
func (l *Ledger) GetBatchHistory(batchID uint64) BatchHistory {
	s := l.snapshot(batchID)
	if s == nil {
		return BatchHistory{Sensors: []SensorData{}, Ownerships: []TransferEvent{}}
	}
	h := BatchHistory{
		Batch:      s.batch,
		Sensors:    make([]SensorData, len(s.sensors)),
		Ownerships: make([]TransferEvent, len(s.transfers)),
	}
	copy(h.Sensors, s.sensors)
	copy(h.Ownerships, s.transfers)
	return h
}

// GetCounts returns the log lengths; zeros for unknown ids.
func (l *Ledger) GetCounts(batchID uint64) Counts {
	s := l.snapshot(batchID)
	if s == nil {
		return Counts{}
	}
	return Counts{SensorCount: uint64(len(s.sensors)), TransferCount: uint64(len(s.transfers))}
}
