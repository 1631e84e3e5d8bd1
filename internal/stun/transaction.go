package stun

// transactionEntry is one outstanding request: enough to validate and
// dispatch the matching response, and nothing else. The codec layer does
// not track what the response means -- that's ICE/TURN's job.
type transactionEntry struct {
	id       TransactionID
	method   Method
	key      []byte
	longTerm bool
	valid    bool
}

// TransactionTable is the fixed-size slotted set of outstanding requests
// described by the transaction bookkeeping in RFC 5389 ?7.3. Slots are
// reused once forgotten or matched, so the table never grows past the
// capacity it was created with.
type TransactionTable struct {
	slots []transactionEntry
}

// NewTransactionTable allocates a table with room for capacity concurrent
// outstanding transactions.
func NewTransactionTable(capacity int) *TransactionTable {
	return &TransactionTable{slots: make([]transactionEntry, capacity)}
}

// Insert records a new outstanding transaction, to be called once a request
// has been built and is about to be sent (finish_request in the usages
// layer). Returns ErrTransactionTableFull if no slot is free.
func (tt *TransactionTable) Insert(id TransactionID, method Method, key []byte, longTerm bool) error {
	for i := range tt.slots {
		if !tt.slots[i].valid {
			tt.slots[i] = transactionEntry{
				id:       id,
				method:   method,
				key:      append([]byte(nil), key...),
				longTerm: longTerm,
				valid:    true,
			}
			return nil
		}
	}
	return ErrTransactionTableFull
}

// Lookup retrieves the entry matching an inbound response's transaction id.
func (tt *TransactionTable) Lookup(id TransactionID) (method Method, key []byte, longTerm bool, ok bool) {
	for i := range tt.slots {
		if tt.slots[i].valid && tt.slots[i].id == id {
			e := tt.slots[i]
			return e.method, e.key, e.longTerm, true
		}
	}
	return 0, nil, false, false
}

// Forget removes a transaction, whether because its response arrived or the
// caller gave up retransmitting it.
func (tt *TransactionTable) Forget(id TransactionID) {
	for i := range tt.slots {
		if tt.slots[i].valid && tt.slots[i].id == id {
			tt.slots[i] = transactionEntry{}
			return
		}
	}
}

// Len reports the number of outstanding transactions.
func (tt *TransactionTable) Len() int {
	n := 0
	for i := range tt.slots {
		if tt.slots[i].valid {
			n++
		}
	}
	return n
}
