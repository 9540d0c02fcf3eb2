package ledger

import (
	"context"
	"encoding/json"
	"strconv"
)

// EventName names a notification. Exactly one notification is emitted per successful mutation.
type EventName string

const (
	EventProducerRegistered    EventName = "ProducerRegistered"
	EventTransporterRegistered EventName = "TransporterRegistered"
	EventDistributorRegistered EventName = "DistributorRegistered"
	EventRetailerRegistered    EventName = "RetailerRegistered"
	EventBatchCreated          EventName = "BatchCreated"
	EventSensorDataAdded       EventName = "SensorDataAdded"
	EventOwnershipTransferred  EventName = "OwnershipTransferred"
	EventArrivedAtRetailer     EventName = "ArrivedAtRetailer"
)

var registeredEvents = map[Role]EventName{
	RoleProducer:    EventProducerRegistered,
	RoleTransporter: EventTransporterRegistered,
	RoleDistributor: EventDistributorRegistered,
	RoleRetailer:    EventRetailerRegistered,
}

// RegisteredRole returns the role a *Registered event adds, if name is one.
func (name EventName) RegisteredRole() (Role, bool) {
	for role, ev := range registeredEvents {
		if ev == name {
			return role, true
		}
	}
	return "", false
}

// Notification records one committed mutation. It carries everything needed to replay the
// mutation, so a journal of notifications in Seq order rebuilds the ledger.
//
// Actor is the caller that caused the event (registrar, producer, transporter, retailer) or,
// for OwnershipTransferred, the previous owner. Subject is the registered account or the new
// owner.
type Notification struct {
	ID               string
	Seq              uint64
	Name             EventName
	Timestamp        uint64
	BatchID          uint64
	Actor            Address
	Subject          Address
	ProductName      string
	Quantity         uint64
	Temperature      int64
	Humidity         int64
	Location         string
	PassedInspection bool
}

// Args returns the event arguments under the names subscribers index on.
func (n Notification) Args() map[string]any {
	switch n.Name {
	case EventProducerRegistered:
		return map[string]any{"producer": n.Subject}
	case EventTransporterRegistered:
		return map[string]any{"transporter": n.Subject}
	case EventDistributorRegistered:
		return map[string]any{"distributor": n.Subject}
	case EventRetailerRegistered:
		return map[string]any{"retailer": n.Subject}
	case EventBatchCreated:
		return map[string]any{
			"batchId":     n.BatchID,
			"productName": n.ProductName,
			"quantity":    n.Quantity,
			"producer":    n.Actor,
		}
	case EventSensorDataAdded:
		return map[string]any{
			"batchId":     n.BatchID,
			"temperature": n.Temperature,
			"humidity":    n.Humidity,
			"location":    n.Location,
			"transporter": n.Actor,
		}
	case EventOwnershipTransferred:
		return map[string]any{"batchId": n.BatchID, "from": n.Actor, "to": n.Subject}
	case EventArrivedAtRetailer:
		return map[string]any{
			"batchId":          n.BatchID,
			"passedInspection": n.PassedInspection,
			"retailer":         n.Actor,
		}
	}
	return map[string]any{}
}

// Key groups notifications for partitioned transports: the batch id for batch events, the
// registered account otherwise.
func (n Notification) Key() string {
	if _, ok := n.Name.RegisteredRole(); ok {
		return n.Subject.Hex()
	}
	return strconv.FormatUint(n.BatchID, 10)
}

func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string         `json:"id"`
		Seq       uint64         `json:"seq"`
		Name      EventName      `json:"name"`
		Timestamp uint64         `json:"timestamp"`
		Args      map[string]any `json:"args"`
	}{n.ID, n.Seq, n.Name, n.Timestamp, n.Args()})
}

// Journal persists notifications before they are committed. A failed Append aborts the
// mutation unless the journal is also a JournalChecker that reports the event as stored.
type Journal interface {
	Append(ctx context.Context, n Notification) error
}

// JournalChecker looks up a journaled notification by seq.
type JournalChecker interface {
	Contains(ctx context.Context, seq uint64) (bool, error)
}

// Publisher receives notifications after commit, in commit order per batch.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}
