package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Ledger is the shared store. Mutations on one batch are serialized; mutations on different
// batches proceed independently. All methods are safe for concurrent use.
type Ledger struct {
	reg   *registry
	guard Guard

	mu      sync.RWMutex
	batches map[uint64]*batchEntry

	seq            atomic.Uint64
	journal        Journal
	publisher      Publisher
	publishTimeout time.Duration
	outbox         *outbox
	now            func() time.Time
	newID          func() string
}

// journalCheckTimeout bounds the lookup that resolves an ambiguous journal append.
const journalCheckTimeout = 5 * time.Second

// Option configures a Ledger.
type Option func(*Ledger)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) { l.guard.policy = p }
}

// WithJournal makes every mutation write-ahead to j.
func WithJournal(j Journal) Option {
	return func(l *Ledger) { l.journal = j }
}

// WithPublisher delivers every committed notification to p, asynchronously and in commit
// order. Call Close to deliver what is still queued.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithPublishTimeout bounds each delivery to the publisher. Defaults to DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.publishTimeout = d }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates an empty ledger administered by owner.
func New(owner Address, opts ...Option) (*Ledger, error) {
	if owner == ZeroAddress {
		return nil, invalid("owner address must not be zero")
	}
	reg := newRegistry(owner)
	l := &Ledger{
		reg:     reg,
		guard:   Guard{policy: DefaultPolicy(), reg: reg},
		batches: make(map[uint64]*batchEntry),
		now:     time.Now,
		newID:   uuid.NewString,

		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.publisher != nil {
		l.outbox = newOutbox(l.publisher, l.publishTimeout)
	}
	return l, nil
}

// Flush blocks until every notification committed so far has been handed to the publisher.
func (l *Ledger) Flush() {
	if l.outbox != nil {
		l.outbox.flush()
	}
}

// Close delivers queued notifications and stops the publisher goroutine. Mutations after
// Close still commit but are no longer published.
func (l *Ledger) Close() {
	if l.outbox != nil {
		l.outbox.close()
	}
}

// Owner returns the privileged address fixed at construction.
func (l *Ledger) Owner() Address { return l.reg.owner }

// Policy returns the active guard policy.
func (l *Ledger) Policy() Policy { return l.guard.policy }

// --- role registry ---

// Register adds account to role. Only the owner may register; registering an existing member
// succeeds again and emits again.
func (l *Ledger) Register(ctx context.Context, caller Address, role Role, account Address) (Notification, error) {
	if !role.Valid() {
		return Notification{}, invalid("unknown role %q", role)
	}
	if account == ZeroAddress {
		return Notification{}, invalid("cannot register the zero address as %s", role)
	}
	if err := l.guard.canRegister(caller); err != nil {
		return Notification{}, err
	}

	n := l.stamp(Notification{Name: registeredEvents[role], Actor: caller, Subject: account})
	if err := l.writeAhead(ctx, n); err != nil {
		return Notification{}, err
	}
	l.reg.mu.Lock()
	l.reg.addLocked(role, account)
	l.publish(ctx, n)
	l.reg.mu.Unlock()
	return n, nil
}

// RegisterProducer registers account as a producer.
func (l *Ledger) RegisterProducer(ctx context.Context, caller, account Address) (Notification, error) {
	return l.Register(ctx, caller, RoleProducer, account)
}

// RegisterTransporter registers account as a transporter.
func (l *Ledger) RegisterTransporter(ctx context.Context, caller, account Address) (Notification, error) {
	return l.Register(ctx, caller, RoleTransporter, account)
}

// RegisterDistributor registers account as a distributor.
func (l *Ledger) RegisterDistributor(ctx context.Context, caller, account Address) (Notification, error) {
	return l.Register(ctx, caller, RoleDistributor, account)
}

// RegisterRetailer registers account as a retailer.
func (l *Ledger) RegisterRetailer(ctx context.Context, caller, account Address) (Notification, error) {
	return l.Register(ctx, caller, RoleRetailer, account)
}

// HasRole reports membership; it never fails.
func (l *Ledger) HasRole(role Role, addr Address) bool { return l.reg.has(role, addr) }

// IsProducer reports whether addr is a registered producer.
func (l *Ledger) IsProducer(addr Address) bool { return l.reg.has(RoleProducer, addr) }

// IsTransporter reports whether addr is a registered transporter.
func (l *Ledger) IsTransporter(addr Address) bool { return l.reg.has(RoleTransporter, addr) }

// IsDistributor reports whether addr is a registered distributor.
func (l *Ledger) IsDistributor(addr Address) bool { return l.reg.has(RoleDistributor, addr) }

// IsRetailer reports whether addr is a registered retailer.
func (l *Ledger) IsRetailer(addr Address) bool { return l.reg.has(RoleRetailer, addr) }

// RolesOf lists every role addr holds, in registration order.
func (l *Ledger) RolesOf(addr Address) []Role { return l.reg.rolesOf(addr) }

// --- batch ledger ---

// CreateBatch records a new batch owned by its producer. A batch id is created at most once.
func (l *Ledger) CreateBatch(ctx context.Context, caller Address, batchID uint64, productName string, quantity uint64) (Notification, error) {
	productName = strings.TrimSpace(productName)
	switch {
	case batchID == 0:
		return Notification{}, invalid("batch id must be positive")
	case productName == "":
		return Notification{}, invalid("product name must not be empty")
	case quantity == 0:
		return Notification{}, invalid("quantity must be positive")
	}
	if err := l.guard.canCreateBatch(caller); err != nil {
		return Notification{}, err
	}

	n := Notification{
		Name:        EventBatchCreated,
		BatchID:     batchID,
		Actor:       caller,
		ProductName: productName,
		Quantity:    quantity,
	}
	return l.commit(ctx, l.entry(batchID, true), n, func(cur *batchState) error {
		if cur.exists() {
			return conflict("batch %d already exists", batchID)
		}
		return nil
	})
}

// TransferOwnership hands custody of batchID to newOwner. Any non-zero address may receive a
// batch, registered or not.
func (l *Ledger) TransferOwnership(ctx context.Context, caller Address, batchID uint64, newOwner Address) (Notification, error) {
	if newOwner == ZeroAddress {
		return Notification{}, invalid("new owner must not be the zero address")
	}
	n := Notification{Name: EventOwnershipTransferred, BatchID: batchID, Subject: newOwner}
	return l.commit(ctx, l.entry(batchID, false), n, func(cur *batchState) error {
		if !cur.exists() {
			return notFound("batch %d does not exist", batchID)
		}
		return l.guard.canTransfer(caller, cur.batch)
	}, func(cur *batchState, n *Notification) {
		n.Actor = cur.batch.CurrentOwner
	})
}

// MarkAsArrived flags the batch as arrived and records the inspection outcome. Repeated calls
// overwrite the outcome.
func (l *Ledger) MarkAsArrived(ctx context.Context, caller Address, batchID uint64, passedInspection bool) (Notification, error) {
	if err := l.guard.canMarkArrived(caller); err != nil {
		return Notification{}, err
	}
	n := Notification{
		Name:             EventArrivedAtRetailer,
		BatchID:          batchID,
		Actor:            caller,
		PassedInspection: passedInspection,
	}
	return l.commit(ctx, l.entry(batchID, false), n, existing(batchID))
}

// --- event log ---

// AddSensorData appends a reading to the batch's sensor log.
func (l *Ledger) AddSensorData(ctx context.Context, caller Address, batchID uint64, temperature, humidity int64, location string) (Notification, error) {
	location = strings.TrimSpace(location)
	switch {
	case temperature < MinTemperature || temperature > MaxTemperature:
		return Notification{}, invalid("temperature %d outside [%d, %d]", temperature, MinTemperature, MaxTemperature)
	case humidity < MinHumidity || humidity > MaxHumidity:
		return Notification{}, invalid("humidity %d outside [%d, %d]", humidity, MinHumidity, MaxHumidity)
	case location == "":
		return Notification{}, invalid("location must not be empty")
	}
	if err := l.guard.canAddSensorData(caller); err != nil {
		return Notification{}, err
	}
	n := Notification{
		Name:        EventSensorDataAdded,
		BatchID:     batchID,
		Actor:       caller,
		Temperature: temperature,
		Humidity:    humidity,
		Location:    location,
	}
	return l.commit(ctx, l.entry(batchID, false), n, existing(batchID))
}

func existing(batchID uint64) func(*batchState) error {
	return func(cur *batchState) error {
		if !cur.exists() {
			return notFound("batch %d does not exist", batchID)
		}
		return nil
	}
}

// entry returns the writer slot for id. Only CreateBatch creates slots; other callers get nil
// for unknown ids.
func (l *Ledger) entry(id uint64, create bool) *batchEntry {
	l.mu.RLock()
	e := l.batches[id]
	l.mu.RUnlock()
	if e != nil || !create {
		return e
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e = l.batches[id]; e == nil {
		e = &batchEntry{}
		l.batches[id] = e
	}
	return e
}

// commit runs check and fill against the current snapshot under the batch lock, then
// journals, swaps in the new snapshot and queues the notification. Queueing under the lock
// keeps per-batch delivery in commit order. Any failure before the swap leaves the batch
// untouched and emits nothing.
func (l *Ledger) commit(ctx context.Context, e *batchEntry, n Notification, check func(*batchState) error, fill ...func(*batchState, *Notification)) (Notification, error) {
	if e == nil {
		return Notification{}, notFound("batch %d does not exist", n.BatchID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.state.Load()
	if err := check(cur); err != nil {
		return Notification{}, err
	}
	for _, f := range fill {
		f(cur, &n)
	}
	n = l.stamp(n)
	next, err := cur.apply(n)
	if err != nil {
		return Notification{}, err
	}
	if err := l.writeAhead(ctx, n); err != nil {
		return Notification{}, err
	}
	e.state.Store(next)
	l.publish(ctx, n)
	return n, nil
}

func (l *Ledger) stamp(n Notification) Notification {
	n.ID = l.newID()
	n.Seq = l.seq.Add(1)
	n.Timestamp = uint64(l.now().Unix())
	return n
}

// writeAhead is the last point at which a mutation can be abandoned.
func (l *Ledger) writeAhead(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.journal == nil {
		return nil
	}
	if err := l.journal.Append(ctx, n); err != nil {
		if l.appended(n) {
			log.Printf("ledger: journal %s #%d reported %v after storing it", n.Name, n.Seq, err)
			return nil
		}
		return fmt.Errorf("ledger: journal %s #%d: %w", n.Name, n.Seq, err)
	}
	return nil
}

// appended reports whether a failed Append stored n anyway, for example when the write
// reached the database but the acknowledgement timed out.
func (l *Ledger) appended(n Notification) bool {
	checker, ok := l.journal.(JournalChecker)
	if !ok {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalCheckTimeout)
	defer cancel()
	found, err := checker.Contains(ctx, n.Seq)
	if err != nil {
		log.Printf("ledger: cannot confirm journal %s #%d: %v", n.Name, n.Seq, err)
		return false
	}
	return found
}

// publish queues n for delivery. It runs after commit, so the caller's cancellation no
// longer applies.
func (l *Ledger) publish(ctx context.Context, n Notification) {
	if l.outbox == nil {
		return
	}
	l.outbox.push(ctx, n)
}
