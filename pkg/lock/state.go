package lock

import "slices"

// resourceState is the lock state of one resource: granted owner records and
// the FIFO queue of requests that could not be granted yet.
//
// Thread Safety: guarded by Manager.mu.
type resourceState struct {
	resource Resource
	owners   []Request
	waiters  []Request
}

func newResourceState(res Resource) *resourceState {
	return &resourceState{resource: res}
}

// holds reports whether txn owns a record of exactly mode.
func (s *resourceState) holds(txn TxnID, mode LockType) bool {
	return slices.ContainsFunc(s.owners, func(r Request) bool {
		return r.Txn.ID() == txn && r.Mode == mode
	})
}

// ownedBy reports whether txn owns any record.
func (s *resourceState) ownedBy(txn TxnID) bool {
	return slices.ContainsFunc(s.owners, func(r Request) bool {
		return r.Txn.ID() == txn
	})
}

// hasIntentOwner reports whether an IS or IX record exists. An empty txn
// accepts records of any transaction.
func (s *resourceState) hasIntentOwner(txn TxnID) bool {
	return slices.ContainsFunc(s.owners, func(r Request) bool {
		return r.Mode.IsIntent() && (txn == "" || r.Txn.ID() == txn)
	})
}

// compatibleWith reports whether txn may be granted mode next to the current
// owners. A conflict with the requester's own S is ignored when X is
// requested; any other conflict, including with the requester's own records,
// blocks the grant.
func (s *resourceState) compatibleWith(txn TxnID, mode LockType) bool {
	for _, o := range s.owners {
		if Compatible(o.Mode, mode) {
			continue
		}
		if o.Txn.ID() == txn && o.Mode == Shared && mode == Exclusive {
			continue
		}
		return false
	}
	return true
}

// grant appends an owner record. Granting X replaces the holder's S record.
func (s *resourceState) grant(req Request) {
	if req.Mode == Exclusive {
		id := req.Txn.ID()
		s.owners = slices.DeleteFunc(s.owners, func(r Request) bool {
			return r.Txn.ID() == id && r.Mode == Shared
		})
	}
	s.owners = append(s.owners, req)
}

// enqueue adds req at the tail. Upgrades go ahead of every non-upgrade
// waiter but behind upgrades queued before them.
func (s *resourceState) enqueue(req Request) {
	if !req.Upgrade {
		s.waiters = append(s.waiters, req)
		return
	}
	i := 0
	for i < len(s.waiters) && s.waiters[i].Upgrade {
		i++
	}
	s.waiters = slices.Insert(s.waiters, i, req)
}

// removeOwner drops every record of txn and returns how many were removed.
func (s *resourceState) removeOwner(txn TxnID) int {
	before := len(s.owners)
	s.owners = slices.DeleteFunc(s.owners, func(r Request) bool {
		return r.Txn.ID() == txn
	})
	return before - len(s.owners)
}

// promote grants queued requests from the head while they are compatible with
// the owners, stopping at the first one that is not. Woken requests are
// returned in grant order.
func (s *resourceState) promote() []Request {
	var granted []Request
	for len(s.waiters) > 0 {
		head := s.waiters[0]
		if !s.compatibleWith(head.Txn.ID(), head.Mode) {
			break
		}
		head.Txn.Wake()
		s.grant(Request{Txn: head.Txn, Mode: head.Mode, Since: now()})
		s.waiters = s.waiters[1:]
		granted = append(granted, head)
	}
	if len(s.waiters) == 0 {
		s.waiters = nil
	}
	return granted
}

func (s *resourceState) idle() bool {
	return len(s.owners) == 0 && len(s.waiters) == 0
}
