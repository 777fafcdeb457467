package ledger_test

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohort-bank/ledger"
	"cohort-bank/models"
)

func TestDepositWithdraw(t *testing.T) {
	l := ledger.NewLedger(100)

	b, err := l.Deposit(20)
	require.NoError(t, err)
	assert.Equal(t, int64(120), b)

	b, err = l.Withdraw(120)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b)
}

func TestInvalidAmount(t *testing.T) {
	l := ledger.NewLedger(10)
	for _, amount := range []int64{0, -5} {
		_, err := l.Deposit(amount)
		assert.True(t, errors.Is(err, models.ErrInvalidAmount))
		_, err = l.Withdraw(amount)
		assert.True(t, errors.Is(err, models.ErrInvalidAmount))
	}
	assert.Equal(t, int64(10), l.Balance())
}

func TestOverdraftLeavesBalanceUnchanged(t *testing.T) {
	l := ledger.NewLedger(10)
	_, err := l.Withdraw(11)
	assert.True(t, errors.Is(err, models.ErrInsufficientFunds))
	assert.Equal(t, int64(10), l.Balance())
}

func TestDepositOverflowLeavesBalanceUnchanged(t *testing.T) {
	l := ledger.NewLedger(50)
	b, err := l.Deposit(math.MaxInt64)
	assert.True(t, errors.Is(err, models.ErrInvalidAmount))
	assert.Equal(t, int64(50), b)
	assert.Equal(t, int64(50), l.Balance())

	b, err = l.Deposit(math.MaxInt64 - 50)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), b)
	_, err = l.Deposit(1)
	assert.True(t, errors.Is(err, models.ErrInvalidAmount))
	assert.Equal(t, int64(math.MaxInt64), l.Balance())
}

func TestRandomSequenceNeverNegative(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	l := ledger.NewLedger(50)
	expected := int64(50)
	for i := 0; i < 1000; i++ {
		amount := rnd.Int63n(40) + 1
		if rnd.Intn(2) == 0 {
			_, err := l.Deposit(amount)
			require.NoError(t, err)
			expected += amount
		} else {
			_, err := l.Withdraw(amount)
			if amount > expected {
				require.True(t, errors.Is(err, models.ErrInsufficientFunds))
			} else {
				require.NoError(t, err)
				expected -= amount
			}
		}
		require.GreaterOrEqual(t, l.Balance(), int64(0))
		require.Equal(t, expected, l.Balance())
	}
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	l := ledger.NewLedger(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = l.Deposit(2)
		}()
		go func() {
			defer wg.Done()
			// may fail while the balance is still low, that is fine
			_, _ = l.Withdraw(1)
		}()
	}
	wg.Wait()
	b := l.Balance()
	assert.GreaterOrEqual(t, b, int64(50))
	assert.LessOrEqual(t, b, int64(100))
}

func TestRestore(t *testing.T) {
	l := ledger.NewLedger(60)
	l.Restore(70)
	assert.Equal(t, int64(70), l.Balance())
}
