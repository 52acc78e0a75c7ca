package ledger_test

import (
	"math"
	"testing"

	"github.com/debnit/MsmeBazaar-sub000/ledger"
)

func TestConfig_Split(t *testing.T) {
	cfg := ledger.DefaultConfig()

	tests := []struct {
		name     string
		total    int64
		hasAgent bool
		want     ledger.Settlement
	}{
		{"agent", 100_000, true, ledger.Settlement{Total: 100_000, PlatformFee: 2_000, AgentCommission: 1_000, SellerAmount: 97_000}},
		{"no agent", 100_000, false, ledger.Settlement{Total: 100_000, PlatformFee: 2_000, SellerAmount: 98_000}},
		{"floors fractions", 149, true, ledger.Settlement{Total: 149, PlatformFee: 2, AgentCommission: 1, SellerAmount: 146}},
		{"too small for fees", 49, true, ledger.Settlement{Total: 49, SellerAmount: 49}},
		{"largest total", math.MaxInt64, true, ledger.Settlement{
			Total:           math.MaxInt64,
			PlatformFee:     184_467_440_737_095_516,
			AgentCommission: 92_233_720_368_547_758,
			SellerAmount:    8_946_670_875_749_132_533,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.Split(tt.total, tt.hasAgent)
			if got != tt.want {
				t.Fatalf("Split(%d) = %+v, want %+v", tt.total, got, tt.want)
			}
			if got.PlatformFee+got.AgentCommission+got.SellerAmount != tt.total {
				t.Fatal("parts do not sum to total")
			}
		})
	}
}

func TestConfig_SplitFullRateDoesNotOverflow(t *testing.T) {
	cfg := ledger.Config{PlatformFeeBps: 10_000}
	const total = int64(1_000_000_000_000_000)
	got := cfg.Split(total, false)
	if got.PlatformFee != total || got.SellerAmount != 0 {
		t.Fatalf("Split(%d) = %+v", total, got)
	}
}

func TestConfig_Valid(t *testing.T) {
	if !ledger.DefaultConfig().Valid() {
		t.Error("default config invalid")
	}
	if (ledger.Config{PlatformFeeBps: 9_000, AgentCommissionBps: 2_000}).Valid() {
		t.Error("fees over 100% accepted")
	}
	if (ledger.Config{PlatformFeeBps: -1}).Valid() {
		t.Error("negative fee accepted")
	}
}

func TestCanTransition(t *testing.T) {
	legal := map[[2]ledger.Status]bool{
		{ledger.StatusPending, ledger.StatusFunded}:   true,
		{ledger.StatusFunded, ledger.StatusCompleted}: true,
		{ledger.StatusFunded, ledger.StatusRefunded}:  true,
	}
	all := []ledger.Status{ledger.StatusPending, ledger.StatusFunded, ledger.StatusCompleted, ledger.StatusRefunded}
	for _, from := range all {
		for _, to := range all {
			if got := ledger.CanTransition(from, to); got != legal[[2]ledger.Status{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestSum(t *testing.T) {
	totals := ledger.Sum([]*ledger.Transaction{
		{Type: ledger.TxDeposit, Amount: 100},
		{Type: ledger.TxWithdrawal, Amount: 90},
		{Type: ledger.TxCommission, Amount: 10},
	})
	if totals.Deposits != 100 || totals.Outflows != 100 || totals.Balance() != 0 {
		t.Errorf("totals = %+v", totals)
	}
}
