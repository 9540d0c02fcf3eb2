// Package ledger implements the FreshChain batch ledger: the role registry, one record per
// batch, the per-batch sensor and custody logs, and the guard evaluated before every mutation.
package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address identifies a caller or custodian. It is a 20-byte account address rendered as
// 0x-prefixed hex.
type Address = common.Address

// ZeroAddress is never a valid registrant or custodian.
var ZeroAddress Address

// Role is one of the four operational roles. The owner is an implicit fifth role that is
// fixed at construction time.
type Role string

const (
	RoleProducer    Role = "producer"
	RoleTransporter Role = "transporter"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
)

// Roles lists the operational roles in registration order.
var Roles = []Role{RoleProducer, RoleTransporter, RoleDistributor, RoleRetailer}

// Valid reports whether r is one of the operational roles.
func (r Role) Valid() bool {
	switch r {
	case RoleProducer, RoleTransporter, RoleDistributor, RoleRetailer:
		return true
	}
	return false
}

// ParseRole accepts a role name in any case, singular or plural ("producers").
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !r.Valid() {
		return "", invalid("unknown role %q", s)
	}
	return r, nil
}

// ParseAddress parses a 0x-prefixed hex account address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAddress, invalid("malformed address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Sensor reading bounds, inclusive.
const (
	MinTemperature = -10
	MaxTemperature = 40
	MinHumidity    = 0
	MaxHumidity    = 40
)

// Batch is the ledger record for one batch id. Exists distinguishes a created batch from an
// id that was never used; lookups of unknown ids return the zero Batch.
type Batch struct {
	BatchID           uint64  `json:"batchId"`
	ProductName       string  `json:"productName"`
	Quantity          uint64  `json:"quantity"`
	Creator           Address `json:"creator"`
	CurrentOwner      Address `json:"currentOwner"`
	ArrivedAtRetailer bool    `json:"arrivedAtRetailer"`
	PassedInspection  bool    `json:"passedInspection"`
	Exists            bool    `json:"exists"`
}

// SensorData is one environmental reading attached to a batch.
type SensorData struct {
	Temperature int64   `json:"temperature"`
	Humidity    int64   `json:"humidity"`
	Location    string  `json:"location"`
	Timestamp   uint64  `json:"timestamp"`
	RecordedBy  Address `json:"recordedBy"`
}

// TransferEvent is one custody handoff.
type TransferEvent struct {
	From      Address `json:"from"`
	To        Address `json:"to"`
	Timestamp uint64  `json:"timestamp"`
}

// BatchHistory is the composed read model for a single batch. Both logs are in append order.
type BatchHistory struct {
	Batch      Batch           `json:"batch"`
	Sensors    []SensorData    `json:"sensors"`
	Ownerships []TransferEvent `json:"ownerships"`
}

// Counts holds the log lengths of a batch.
type Counts struct {
	SensorCount   uint64 `json:"sensorCount"`
	TransferCount uint64 `json:"transferCount"`
}
