// Package notify delivers committed ledger notifications to external sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"freshchain-ledger-server/internal/ledger"
)

// Fanout publishes each notification to every sink in order and joins their errors.
// A failing sink does not stop delivery to the rest.
type Fanout struct {
	sinks []ledger.Publisher
}

var _ ledger.Publisher = (*Fanout)(nil)

func NewFanout(sinks ...ledger.Publisher) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add appends a sink. Nil sinks are ignored. Not safe to call once publishing has started.
func (f *Fanout) Add(s ledger.Publisher) {
	if s != nil {
		f.sinks = append(f.sinks, s)
	}
}

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Publish(ctx context.Context, n ledger.Notification) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
