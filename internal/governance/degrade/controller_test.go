package degrade

import (
	"sync"
	"testing"

	"github.com/vietddude/governor/internal/core/domain"
)

func TestSetLevelAppliesRules(t *testing.T) {
	c := New(DefaultRules())

	cfg := c.SetLevel(domain.LevelDegradedL2, "test")
	if cfg.Level != domain.LevelDegradedL2 {
		t.Fatalf("level = %s, want %s", cfg.Level, domain.LevelDegradedL2)
	}

	tests := []struct {
		feature string
		want    domain.FeatureFlag
	}{
		{"checkout", domain.FlagEnabled},
		{"search", domain.FlagDegraded},
		{"recommendations", domain.FlagDisabled},
		{"analytics", domain.FlagDisabled},
		{"exports", domain.FlagDisabled},
	}
	for _, tt := range tests {
		if got := cfg.Features[tt.feature]; got != tt.want {
			t.Errorf("feature %s flag = %s, want %s", tt.feature, got, tt.want)
		}
	}
}

func TestIsFeatureAvailable(t *testing.T) {
	c := New(DefaultRules())
	c.SetLevel(domain.LevelDegradedL2, "test")

	tests := []struct {
		feature string
		want    bool
	}{
		{"checkout", true},
		{"search", true}, // degraded still admits traffic
		{"analytics", false},
		{"never-mentioned", true},
	}
	for _, tt := range tests {
		if got := c.IsFeatureAvailable(tt.feature); got != tt.want {
			t.Errorf("IsFeatureAvailable(%s) = %t, want %t", tt.feature, got, tt.want)
		}
	}
}

func TestUnspecifiedFeatureKeepsPriorFlag(t *testing.T) {
	rules := map[domain.DegradationLevel]domain.DegradationRule{
		domain.LevelDegradedL1: {Disabled: []string{"analytics"}},
		domain.LevelDegradedL2: {Reduced: []string{"search"}},
	}
	c := New(rules)

	c.SetLevel(domain.LevelDegradedL1, "first")
	c.SetLevel(domain.LevelDegradedL2, "second")

	cfg := c.Current()
	// L2's rule says nothing about analytics, so the L1 flag survives.
	if got := cfg.Features["analytics"]; got != domain.FlagDisabled {
		t.Errorf("analytics flag = %s, want %s carried over", got, domain.FlagDisabled)
	}
	if got := cfg.Features["search"]; got != domain.FlagDegraded {
		t.Errorf("search flag = %s, want %s", got, domain.FlagDegraded)
	}
}

func TestEnsureAtLeastOnlyRaises(t *testing.T) {
	c := New(DefaultRules())

	c.EnsureAtLeast(domain.LevelDegradedL2, "critical failure")
	if got := c.Level(); got != domain.LevelDegradedL2 {
		t.Fatalf("level = %s, want %s", got, domain.LevelDegradedL2)
	}

	// A lower floor never lowers the active level.
	c.EnsureAtLeast(domain.LevelDegradedL1, "lesser failure")
	if got := c.Level(); got != domain.LevelDegradedL2 {
		t.Errorf("level = %s, want %s unchanged", got, domain.LevelDegradedL2)
	}

	c.EnsureAtLeast(domain.LevelDegradedL3, "worse failure")
	if got := c.Level(); got != domain.LevelDegradedL3 {
		t.Errorf("level = %s, want %s", got, domain.LevelDegradedL3)
	}
}

func TestModeHistoryAppendOnly(t *testing.T) {
	c := New(DefaultRules())

	c.SetLevel(domain.LevelDegradedL1, "first")
	c.SetLevel(domain.LevelDegradedL2, "second")
	c.SetLevel(domain.LevelNormal, "recovered")

	history := c.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Reason != "first" || history[2].Level != domain.LevelNormal {
		t.Errorf("history = %+v, want ordered entries", history)
	}
}

func TestLevelChangeAtomic(t *testing.T) {
	c := New(DefaultRules())

	// Flip between two levels while readers check for a torn feature map:
	// at L2 checkout is enabled and analytics disabled; at offline both are
	// disabled. Seeing checkout disabled with analytics enabled would mean
	// a partially applied update.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.SetLevel(domain.LevelDegradedL2, "flip")
			c.SetLevel(domain.LevelOffline, "flop")
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			cfg := c.Current()
			checkout := cfg.Features["checkout"]
			analytics := cfg.Features["analytics"]
			switch cfg.Level {
			case domain.LevelDegradedL2:
				if checkout != domain.FlagEnabled || analytics != domain.FlagDisabled {
					t.Errorf("torn L2 state: checkout=%s analytics=%s", checkout, analytics)
					return
				}
			case domain.LevelOffline:
				if checkout != domain.FlagDisabled {
					t.Errorf("torn offline state: checkout=%s", checkout)
					return
				}
			}
		}
	}()

	wg.Wait()
}

func TestQualityTradeoffs(t *testing.T) {
	c := New(DefaultRules())
	c.SetLevel(domain.LevelDegradedL3, "test")

	tradeoffs := c.QualityTradeoffs()
	if tradeoffs.Level != domain.LevelDegradedL3 {
		t.Errorf("level = %s, want %s", tradeoffs.Level, domain.LevelDegradedL3)
	}
	if !tradeoffs.NotifyUsers {
		t.Error("L3 must notify users")
	}
	if tradeoffs.SLAImpact == "" {
		t.Error("expected an SLA impact description")
	}
	if tradeoffs.FeatureAvailability["checkout"] != domain.FlagDegraded {
		t.Errorf("checkout flag = %s, want %s", tradeoffs.FeatureAvailability["checkout"], domain.FlagDegraded)
	}
}
