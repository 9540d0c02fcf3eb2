package models

import "time"

// LedgerEvent is one journaled ledger notification in the ledger_events collection.
// Addresses are stored as checksummed hex strings.
type LedgerEvent struct {
	EventID          string    `bson:"eventID"`
	Seq              int64     `bson:"seq"`
	Name             string    `bson:"name"`
	Timestamp        int64     `bson:"timestamp"`
	BatchID          int64     `bson:"batchID,omitempty"`
	Actor            string    `bson:"actor"`
	Subject          string    `bson:"subject,omitempty"`
	ProductName      string    `bson:"productName,omitempty"`
	Quantity         int64     `bson:"quantity,omitempty"`
	Temperature      int64     `bson:"temperature"`
	Humidity         int64     `bson:"humidity"`
	Location         string    `bson:"location,omitempty"`
	PassedInspection bool      `bson:"passedInspection"`
	RecordedAt       time.Time `bson:"recordedAt"`
}
