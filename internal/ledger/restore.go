package ledger

import (
	"fmt"
	"log"
	"sort"
)

// Restore replays journaled notifications into an empty ledger, in Seq order. Replayed events
// bypass the guard, the journal and the publisher. A repeated BatchCreated for an existing
// batch is skipped; it is left behind when a create was journaled but reported as failed and
// then retried. Any other event that does not apply fails the restore, which means the
// journal does not belong to this ledger or is corrupt.
func (l *Ledger) Restore(events []Notification) error {
	if l.seq.Load() != 0 {
		return fmt.Errorf("ledger: restore into a ledger that already has events")
	}
	ordered := make([]Notification, len(events))
	copy(ordered, events)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	var last uint64
	for _, n := range ordered {
		if n.Seq == last {
			return fmt.Errorf("ledger: duplicate event seq %d", n.Seq)
		}
		if role, ok := n.Name.RegisteredRole(); ok {
			if n.Actor != l.reg.owner {
				return fmt.Errorf("ledger: event #%d registered by %s, owner is %s", n.Seq, n.Actor.Hex(), l.reg.owner.Hex())
			}
			l.reg.mu.Lock()
			l.reg.addLocked(role, n.Subject)
			l.reg.mu.Unlock()
		} else {
			e := l.entry(n.BatchID, n.Name == EventBatchCreated)
			if e == nil {
				return fmt.Errorf("ledger: event #%d: batch %d does not exist", n.Seq, n.BatchID)
			}
			cur := e.state.Load()
			if n.Name == EventBatchCreated && cur.exists() {
				log.Printf("ledger: event #%d: batch %d already exists, skipping repeated create", n.Seq, n.BatchID)
				last = n.Seq
				continue
			}
			next, err := cur.apply(n)
			if err != nil {
				return fmt.Errorf("ledger: event #%d: %w", n.Seq, err)
			}
			e.state.Store(next)
		}
		last = n.Seq
	}
	l.seq.Store(last)
	return nil
}
