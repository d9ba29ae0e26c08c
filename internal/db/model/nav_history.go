package model

const (
	NavHistoryCollection = "nav_history"
	navHistoryID         = "nav_history"
)

type NavHistoryEntry struct {
	Timestamp     int64  `bson:"timestamp"`
	RealValuation uint64 `bson:"real_valuation"`
}

// NavHistoryDocument keeps the entries in ascending timestamp order.
type NavHistoryDocument struct {
	ID      string            `bson:"_id"`
	Entries []NavHistoryEntry `bson:"entries"`
}

func NewNavHistoryDocument() *NavHistoryDocument {
	return &NavHistoryDocument{
		ID:      navHistoryID,
		Entries: []NavHistoryEntry{},
	}
}

// Last returns the most recent entry, if any.
func (h *NavHistoryDocument) Last() (NavHistoryEntry, bool) {
	if len(h.Entries) == 0 {
		return NavHistoryEntry{}, false
	}
	return h.Entries[len(h.Entries)-1], true
}
