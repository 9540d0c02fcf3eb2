package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"freshchain-ledger-server/internal/ledger"
)

// RecordEventFn is the chaincode function every notification is anchored with.
const RecordEventFn = "RecordEvent"

// Submitter is the part of *gateway.Contract the anchor needs.
type Submitter interface {
	SubmitTransaction(name string, args ...string) ([]byte, error)
}

// Anchor notarizes every ledger notification on a Fabric channel. The chaincode receives the
// notification id, its sequence number and the JSON body.
type Anchor struct {
	contract Submitter
}

var _ ledger.Publisher = (*Anchor)(nil)

func NewAnchor(contract Submitter) *Anchor {
	return &Anchor{contract: contract}
}

func (a *Anchor) Publish(ctx context.Context, n ledger.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if _, err := a.contract.SubmitTransaction(RecordEventFn, n.ID, strconv.FormatUint(n.Seq, 10), string(body)); err != nil {
		return fmt.Errorf("anchor %s #%d: %w", n.Name, n.Seq, err)
	}
	return nil
}
