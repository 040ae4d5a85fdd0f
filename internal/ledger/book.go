package ledger

// Book is the balance map. Entries are created on first sight and never
// removed; rounds come and go underneath it.
type Book struct {
	balances       map[UserID]int
	ownerID        UserID
	defaultBalance int
	ownerBalance   int
}

func NewBook(ownerID UserID, defaultBalance, ownerBalance int) *Book {
	return &Book{
		balances:       make(map[UserID]int),
		ownerID:        ownerID,
		defaultBalance: defaultBalance,
		ownerBalance:   ownerBalance,
	}
}

// GetOrInit is the only place a balance gets its starting value.
func (b *Book) GetOrInit(id UserID) int {
	if bal, ok := b.balances[id]; ok {
		return bal
	}
	bal := b.defaultBalance
	if id == b.ownerID {
		bal = b.ownerBalance
	}
	b.balances[id] = bal
	return bal
}

// Add credits delta (which may be negative) and returns the new balance.
func (b *Book) Add(id UserID, delta int) int {
	bal := b.GetOrInit(id) + delta
	b.balances[id] = bal
	return bal
}

func (b *Book) IsOwner(id UserID) bool { return id == b.ownerID }

func (b *Book) Len() int { return len(b.balances) }
