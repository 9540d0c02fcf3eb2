package database

import (
	"context"
	"fmt"
	"time"

	"freshchain-ledger-server/internal/ledger"
	"freshchain-ledger-server/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Journal is the write-ahead ledger journal backed by the ledger_events collection.
type Journal struct {
	coll *mongo.Collection
}

var (
	_ ledger.Journal        = (*Journal)(nil)
	_ ledger.JournalChecker = (*Journal)(nil)
)

func NewJournal(db *mongo.Database) *Journal {
	return &Journal{coll: db.Collection(EventsCollection)}
}

func (j *Journal) EnsureIndexes(ctx context.Context) error {
	_, err := j.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "batchID", Value: 1}, {Key: "seq", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ledger_events index: %w", err)
	}
	return nil
}

func (j *Journal) Append(ctx context.Context, n ledger.Notification) error {
	_, err := j.coll.InsertOne(ctx, toEventDocument(n, time.Now().UTC()))
	return err
}

// Contains reports whether the event with seq was stored.
func (j *Journal) Contains(ctx context.Context, seq uint64) (bool, error) {
	count, err := j.coll.CountDocuments(ctx, seqFilter(seq), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("lookup ledger event #%d: %w", seq, err)
	}
	return count > 0, nil
}

func seqFilter(seq uint64) bson.M {
	return bson.M{"seq": int64(seq)}
}

// Load returns every journaled notification in seq order.
func (j *Journal) Load(ctx context.Context) ([]ledger.Notification, error) {
	cur, err := j.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("load ledger events: %w", err)
	}
	defer cur.Close(ctx)

	var events []ledger.Notification
	for cur.Next(ctx) {
		var doc models.LedgerEvent
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode ledger event: %w", err)
		}
		n, err := fromEventDocument(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, n)
	}
	return events, cur.Err()
}

// Unsigned counters are stored bit-for-bit as int64; BSON has no unsigned 64-bit type.
func toEventDocument(n ledger.Notification, recordedAt time.Time) models.LedgerEvent {
	doc := models.LedgerEvent{
		EventID:          n.ID,
		Seq:              int64(n.Seq),
		Name:             string(n.Name),
		Timestamp:        int64(n.Timestamp),
		BatchID:          int64(n.BatchID),
		Actor:            n.Actor.Hex(),
		ProductName:      n.ProductName,
		Quantity:         int64(n.Quantity),
		Temperature:      n.Temperature,
		Humidity:         n.Humidity,
		Location:         n.Location,
		PassedInspection: n.PassedInspection,
		RecordedAt:       recordedAt,
	}
	if n.Subject != ledger.ZeroAddress {
		doc.Subject = n.Subject.Hex()
	}
	return doc
}

func fromEventDocument(doc models.LedgerEvent) (ledger.Notification, error) {
	n := ledger.Notification{
		ID:               doc.EventID,
		Seq:              uint64(doc.Seq),
		Name:             ledger.EventName(doc.Name),
		Timestamp:        uint64(doc.Timestamp),
		BatchID:          uint64(doc.BatchID),
		ProductName:      doc.ProductName,
		Quantity:         uint64(doc.Quantity),
		Temperature:      doc.Temperature,
		Humidity:         doc.Humidity,
		Location:         doc.Location,
		PassedInspection: doc.PassedInspection,
	}
	if !common.IsHexAddress(doc.Actor) {
		return ledger.Notification{}, fmt.Errorf("ledger event #%d: bad actor %q", doc.Seq, doc.Actor)
	}
	n.Actor = common.HexToAddress(doc.Actor)
	if doc.Subject != "" {
		if !common.IsHexAddress(doc.Subject) {
			return ledger.Notification{}, fmt.Errorf("ledger event #%d: bad subject %q", doc.Seq, doc.Subject)
		}
		n.Subject = common.HexToAddress(doc.Subject)
	}
	return n, nil
}
