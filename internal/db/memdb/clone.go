package memdb

import "github.com/shrublabs/shrub-fund/internal/db/model"

func (s state) clone() state {
	cp := newState()
	if s.ledger != nil {
		ledger := *s.ledger
		cp.ledger = &ledger
	}
	if s.directory != nil {
		dir := *s.directory
		cp.directory = &dir
	}
	if s.navHistory != nil {
		cp.navHistory = cloneHistory(s.navHistory)
	}
	if s.queue != nil {
		queue := *s.queue
		cp.queue = &queue
	}
	for k, v := range s.shards {
		cp.shards[k] = v
	}
	for k, v := range s.slots {
		cp.slots[k] = *cloneSlot(v)
	}
	for k, v := range s.pending {
		cp.pending[k] = v
	}
	for k, v := range s.userShares {
		cp.userShares[k] = *cloneUserShare(v)
	}
	for k, v := range s.nonces {
		cp.nonces[k] = v
	}
	return cp
}

func cloneLock(lock *model.WithdrawalLock) *model.WithdrawalLock {
	if lock == nil {
		return nil
	}
	cp := *lock
	return &cp
}

func cloneSlot(slot model.RegistrySlotDocument) *model.RegistrySlotDocument {
	if slot.User != nil {
		user := *slot.User
		user.Withdrawal = cloneLock(slot.User.Withdrawal)
		slot.User = &user
	}
	return &slot
}

func cloneUserShare(doc model.UserShareDocument) *model.UserShareDocument {
	doc.Withdrawal = cloneLock(doc.Withdrawal)
	return &doc
}

func cloneHistory(doc *model.NavHistoryDocument) *model.NavHistoryDocument {
	entries := make([]model.NavHistoryEntry, len(doc.Entries))
	copy(entries, doc.Entries)
	return &model.NavHistoryDocument{ID: doc.ID, Entries: entries}
}
