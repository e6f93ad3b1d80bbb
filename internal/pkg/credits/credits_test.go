package credits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swifttools/SwiftTools/app/models"
)

func TestDBGateRejectsNonPositiveAmount(t *testing.T) {
	gate := NewDBGate(nil)

	_, err := gate.Deduct(context.Background(), 1, 0)
	assert.Error(t, err)

	_, err = gate.Deduct(context.Background(), 1, -3)
	assert.Error(t, err)
}

func TestErrInsufficientCreditsIsSentinel(t *testing.T) {
	wrapped := fmt.Errorf("submission rejected: %w", ErrInsufficientCredits)
	assert.True(t, errors.Is(wrapped, ErrInsufficientCredits))
}

// memoryGate mirrors the database gate's contract with an in-memory
// balance: the deduction is a single guarded decrement, so the balance
// can never go negative no matter how many callers race.
type memoryGate struct {
	mu      sync.Mutex
	balance int
}

func (g *memoryGate) Deduct(ctx context.Context, userID uint, amount int) (*models.User, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deduction amount must be positive, got %d", amount)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balance < amount {
		return nil, ErrInsufficientCredits
	}
	g.balance -= amount
	return &models.User{ID: userID, Credits: g.balance}, nil
}

// TestGateContractUnderConcurrency drives the Gate contract from many
// goroutines: with balance B and N submissions, exactly B deductions
// succeed and the final balance is exactly zero, never negative.
func TestGateContractUnderConcurrency(t *testing.T) {
	const balance = 5
	const submissions = 40

	gate := &memoryGate{balance: balance}

	var wg sync.WaitGroup
	results := make([]error, submissions)
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = gate.Deduct(context.Background(), 1, 1)
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientCredits):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, balance, succeeded)
	assert.Equal(t, submissions-balance, rejected)
	require.Equal(t, 0, gate.balance)
}

var _ Gate = (*memoryGate)(nil)
