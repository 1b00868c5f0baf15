package services

import (
	"context"
	"math/big"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestBalanceTrackerPublishesBalance(t *testing.T) {
	// given an L1 wallet with a known balance
	l1 := newFakeL1()
	l1.balance = big.NewInt(42)
	tracker := NewBalanceTracker(l1)

	// when the tracker ticks
	if err := tracker.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// then the gauge reflects it
	m := &dto.Metric{}
	if err := tracker.balance.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 42 {
		t.Fatalf("expected gauge value 42, got %v", got)
	}
}
