package reb

import "testing"

// S3: weights {50,50} vs {10,10}, desiredDelta=40. Trade big=50,small=10,
// closeness=0; trade applied.
func TestTradeTasksScenarioS3(t *testing.T) {
	bigger := []TaskWeight{{Weight: 50, Index: 0}, {Weight: 50, Index: 1}}
	smaller := []TaskWeight{{Weight: 10, Index: 2}, {Weight: 10, Index: 3}}
	bigIdx, smallIdx, closeness := TradeTasks(40, bigger, smaller)
	if closeness != 0 {
		t.Fatalf("expected closeness 0, got %d", closeness)
	}
	if bigger[bigIdx].Weight != 50 || smaller[smallIdx].Weight != 10 {
		t.Fatalf("expected 50<->10 pairing, got big=%d small=%d", bigger[bigIdx].Weight, smaller[smallIdx].Weight)
	}
}

// S2: weights {100,1} vs {1,1}, desiredDelta=49. Trade big=100,small=1,
// delta=99, best closeness 50 - above 2*49/3=32, so no trade should be
// applied by the caller (TradeTasks itself just reports the closeness;
// the apply-or-not decision lives in the balancer step).
func TestTradeTasksScenarioS2(t *testing.T) {
	bigger := []TaskWeight{{Weight: 100, Index: 0}}
	smaller := []TaskWeight{{Weight: 1, Index: 1}}
	_, _, closeness := TradeTasks(49, bigger, smaller)
	if closeness != 50 {
		t.Fatalf("expected closeness 50, got %d", closeness)
	}
}

// I5: takeTasks never selects a task whose own weight would push the
// cumulative total at or beyond the remaining budget, and the total never
// reaches 1.1*desiredDelta.
func TestTakeTasksStaysUnderOverageBound(t *testing.T) {
	giver := []TaskWeight{{Weight: 100, Index: 0}, {Weight: 10, Index: 1}, {Weight: 5, Index: 2}, {Weight: 3, Index: 3}}
	desiredDelta := uint64(20)
	maxGiveAway := desiredDelta + desiredDelta/10 // 22

	taken := TakeTasks(desiredDelta, giver)
	var total uint64
	for _, idx := range taken {
		total += giver[idx].Weight
	}
	if total >= maxGiveAway {
		t.Fatalf("expected total < %d, got %d", maxGiveAway, total)
	}
	// S2's single 100-weight task must never be selectable against a
	// desiredDelta of 49 (100 > 1.1*49 = 53.9).
	big := []TaskWeight{{Weight: 100, Index: 0}}
	if got := TakeTasks(49, big); len(got) != 0 {
		t.Fatalf("expected no tasks taken when the only task exceeds the overage bound, got %v", got)
	}
}

// I4: TradeTasks is idempotent - re-running on the same inputs yields the
// same answer.
func TestTradeTasksIdempotent(t *testing.T) {
	bigger := []TaskWeight{{Weight: 5}, {Weight: 20}, {Weight: 45}}
	smaller := []TaskWeight{{Weight: 2}, {Weight: 8}, {Weight: 15}}
	b1, s1, c1 := TradeTasks(30, bigger, smaller)
	b2, s2, c2 := TradeTasks(30, bigger, smaller)
	if b1 != b2 || s1 != s2 || c1 != c2 {
		t.Fatalf("expected idempotent result, got (%d,%d,%d) then (%d,%d,%d)", b1, s1, c1, b2, s2, c2)
	}
}
