package model

const (
	CashoutQueueCollection   = "cashout_queue"
	PendingCashoutCollection = "pending_cashouts"
	cashoutQueueID           = "cashout_queue"

	// CashoutQueueStorageHandle names the queue allocation for the storage collaborator.
	CashoutQueueStorageHandle = "pending-cashout-queue"
)

// CashoutQueueDocument tracks the allocated capacity of the pending
// withdrawal queue. Entries live in PendingCashoutCollection.
type CashoutQueueDocument struct {
	ID           string `bson:"_id"`
	Capacity     uint64 `bson:"capacity"`
	StorageBytes uint64 `bson:"storage_bytes"`
}

func NewCashoutQueueDocument(capacity, entrySize uint64) *CashoutQueueDocument {
	return &CashoutQueueDocument{
		ID:           cashoutQueueID,
		Capacity:     capacity,
		StorageBytes: capacity * entrySize,
	}
}

type PendingCashoutDocument struct {
	Owner        string `bson:"_id"`
	LockedAmount uint64 `bson:"locked_amount"`
	EnqueuedAt   int64  `bson:"enqueued_at"`
}
