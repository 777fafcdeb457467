package ledger

import (
	"math"
	"sync"

	"cohort-bank/models"
)

// Ledger holds a customer's balance. The balance never goes negative.
type Ledger struct {
	balance int64
	mux     sync.Mutex
}

func NewLedger(balance int64) *Ledger {
	return &Ledger{balance: balance}
}

// Deposit adds amount and returns the resulting balance.
// A deposit the balance cannot hold leaves it unchanged.
func (l *Ledger) Deposit(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, models.Errorf(models.KindInvalidAmount, "%d", amount)
	}
	l.mux.Lock()
	defer l.mux.Unlock()

	if amount > math.MaxInt64-l.balance {
		return l.balance, models.Errorf(models.KindInvalidAmount, "balance %d cannot hold %d more", l.balance, amount)
	}
	l.balance += amount
	return l.balance, nil
}

// Withdraw removes amount and returns the resulting balance.
// A withdrawal that would overdraw the account leaves the balance unchanged.
func (l *Ledger) Withdraw(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, models.Errorf(models.KindInvalidAmount, "%d", amount)
	}
	l.mux.Lock()
	defer l.mux.Unlock()

	if l.balance-amount < 0 {
		return l.balance, models.Errorf(models.KindInsufficientFunds, "balance %d, amount %d", l.balance, amount)
	}
	l.balance -= amount
	return l.balance, nil
}

func (l *Ledger) Balance() int64 {
	l.mux.Lock()
	defer l.mux.Unlock()
	return l.balance
}

// Restore overwrites the balance, used when rolling back to a snapshot.
func (l *Ledger) Restore(balance int64) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.balance = balance
}
