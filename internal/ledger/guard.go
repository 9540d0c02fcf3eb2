package ledger

// Policy configures the role checks that are workflow convention rather than fixed rules.
// Registration, batch creation and ownership checks are always enforced.
type Policy struct {
	// RestrictSensorData limits AddSensorData to registered transporters.
	RestrictSensorData bool
	// RestrictArrival limits MarkAsArrived to registered retailers.
	RestrictArrival bool
}

// DefaultPolicy enforces every role check.
func DefaultPolicy() Policy {
	return Policy{RestrictSensorData: true, RestrictArrival: true}
}

// Guard evaluates caller preconditions. It never mutates state.
type Guard struct {
	policy Policy
	reg    *registry
}

func (g Guard) canRegister(caller Address) error {
	if caller != g.reg.owner {
		return unauthorized("caller %s is not the owner", caller.Hex())
	}
	return nil
}

func (g Guard) canCreateBatch(caller Address) error {
	if !g.reg.has(RoleProducer, caller) {
		return unauthorized("caller %s is not a registered producer", caller.Hex())
	}
	return nil
}

func (g Guard) canAddSensorData(caller Address) error {
	if g.policy.RestrictSensorData && !g.reg.has(RoleTransporter, caller) {
		return unauthorized("caller %s is not a registered transporter", caller.Hex())
	}
	return nil
}

func (g Guard) canTransfer(caller Address, b Batch) error {
	if caller != b.CurrentOwner {
		return unauthorized("caller %s is not the current owner of batch %d", caller.Hex(), b.BatchID)
	}
	return nil
}

func (g Guard) canMarkArrived(caller Address) error {
	if g.policy.RestrictArrival && !g.reg.has(RoleRetailer, caller) {
		return unauthorized("caller %s is not a registered retailer", caller.Hex())
	}
	return nil
}
