package core_test

import (
	"testing"
	"time"

	"StokVault/internal/core"
)

// ============================================================================
// Test: Full rotation cycle
// ============================================================================

// Three members rotate through a complete cycle: one clean settlement, one
// violation feeding the insurance pool, one more clean settlement, then a
// score-weighted distribution and an exit. Asserts the exact fund movements
// end to end and that the ledger journal stays conserved throughout.
func TestEngine_FullCycleWithDistribution(t *testing.T) {
	params := core.DefaultParams()
	// A fully preserved 60/40 pool measures exactly the minimum weight, so
	// this threshold makes preservation pass and any wETH loss fail.
	params.ThresholdBps = 4_000
	f := newFixture(t, params)

	a := f.join(600, 400)
	b := f.join(600, 400)
	c := f.join(600, 400)

	// --- Round 1: recipient a, clean ---
	r1 := f.startRound(a)
	if r1.Recipient != a {
		t.Fatalf("round 1 recipient: got %s, want a", r1.Recipient)
	}
	if r1.Assets[0].InitialAmount != 1_800 || r1.Assets[1].InitialAmount != 1_200 {
		t.Fatalf("round 1 pool: got %d/%d, want 1800/1200", r1.Assets[0].InitialAmount, r1.Assets[1].InitialAmount)
	}

	if _, err := f.eng.Claim(a); err != nil {
		t.Fatalf("round 1 claim: %v", err)
	}
	res1, err := f.eng.Complete(a)
	if err != nil {
		t.Fatalf("round 1 complete: %v", err)
	}
	if res1.Violation {
		t.Errorf("round 1: preserved pool flagged as violation (hf=%d)", res1.HealthFactorBps)
	}
	if res1.ScoreBps != 10_100 {
		t.Errorf("a score after clean round: got %d, want 10100", res1.ScoreBps)
	}

	// --- Round 2: recipient b loses wETH ---
	f.advance(time.Hour)
	r2 := f.startRound(b)
	if r2.Recipient != b {
		t.Fatalf("round 2 recipient: got %s, want b", r2.Recipient)
	}

	if _, err := f.eng.Claim(b); err != nil {
		t.Fatalf("round 2 claim: %v", err)
	}
	f.led.Burn(f.eth, b, 900)

	res2, err := f.eng.Complete(b)
	if err != nil {
		t.Fatalf("round 2 complete: %v", err)
	}
	if !res2.Violation {
		t.Fatal("round 2: wETH loss not flagged")
	}
	// 900/1800 * 0.6 = 0.3 on the wETH leg, below the intact wDAI leg.
	if res2.HealthFactorBps != 3_000 {
		t.Errorf("round 2 health factor: got %d, want 3000", res2.HealthFactorBps)
	}
	if res2.DeficitTotal != 900 || res2.PenaltyTotal != 180 {
		t.Errorf("round 2 penalty: got deficit=%d penalty=%d, want 900/180", res2.DeficitTotal, res2.PenaltyTotal)
	}
	if res2.ScoreBps != 3_000 {
		t.Errorf("b score after violation: got %d, want 3000", res2.ScoreBps)
	}
	if got := f.eng.Insurance().Balance(f.eth); got != 108 {
		t.Errorf("insurance wETH: got %d, want 108", got)
	}
	if got := f.eng.Insurance().Balance(f.dai); got != 72 {
		t.Errorf("insurance wDAI: got %d, want 72", got)
	}

	// --- Round 3: recipient c, clean over the shrunken pool ---
	f.advance(time.Hour)
	r3 := f.startRound(c)
	if r3.Recipient != c {
		t.Fatalf("round 3 recipient: got %s, want c", r3.Recipient)
	}
	if r3.Assets[0].InitialAmount != 900 || r3.Assets[1].InitialAmount != 1_200 {
		t.Fatalf("round 3 pool: got %d/%d, want 900/1200", r3.Assets[0].InitialAmount, r3.Assets[1].InitialAmount)
	}

	if _, err := f.eng.Claim(c); err != nil {
		t.Fatalf("round 3 claim: %v", err)
	}
	if _, err := f.eng.Complete(c); err != nil {
		t.Fatalf("round 3 complete: %v", err)
	}

	// Everyone has received a payout; the rotation wraps back to a.
	next, err := f.eng.Registry().PeekNextRecipient()
	if err != nil {
		t.Fatalf("peek next recipient: %v", err)
	}
	if next.ID != a {
		t.Errorf("cycle reset: next recipient %s, want a", next.ID)
	}

	// --- Distribution: 108 wETH + 72 wDAI at scores 10100/3000/10100 ---
	dres, err := f.eng.DistributeInsurance(a)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if dres.Totals[f.eth] != 107 || dres.Totals[f.dai] != 71 {
		t.Errorf("distributed totals: got %d/%d, want 107/71 (dust discarded)", dres.Totals[f.eth], dres.Totals[f.dai])
	}
	if got := f.led.BalanceOf(f.eth, a); got != 47 {
		t.Errorf("a wETH payout: got %d, want 47", got)
	}
	if got := f.led.BalanceOf(f.eth, b); got != 13 {
		t.Errorf("b wETH payout: got %d, want 13", got)
	}
	if got := f.led.BalanceOf(f.dai, b); got != 9 {
		t.Errorf("b wDAI payout: got %d, want 9", got)
	}
	if got := f.eng.Insurance().Balance(f.eth); got != 0 {
		t.Errorf("insurance wETH after distribution: got %d, want 0", got)
	}

	// --- b exits with deposits intact despite the violation ---
	if _, err := f.eng.Exit(b); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if got := f.led.BalanceOf(f.eth, b); got != 613 {
		t.Errorf("b wETH after exit: got %d, want 613", got)
	}
	if got := f.led.BalanceOf(f.dai, b); got != 409 {
		t.Errorf("b wDAI after exit: got %d, want 409", got)
	}

	// The score survives the exit.
	if rec := f.eng.ScoreBook().Get(b); rec == nil || rec.ScoreBps != 3_000 {
		t.Errorf("b score history after exit: %+v", rec)
	}

	if got := f.led.BalanceOf(f.eth, f.eng.Custody()); got != 193 {
		t.Errorf("custody wETH at end: got %d, want 193", got)
	}
	if got := f.led.BalanceOf(f.dai, f.eng.Custody()); got != 729 {
		t.Errorf("custody wDAI at end: got %d, want 729", got)
	}

	if err := f.led.VerifyConservation(); err != nil {
		t.Errorf("ledger conservation: %v", err)
	}
}
