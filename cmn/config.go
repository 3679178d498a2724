package cmn

import (
	"sync"

	"go.uber.org/atomic"
)

// BalanceConfig holds the load balancer's tunable thresholds as overridable
// fields instead of literals baked into the algorithm, per spec §9's
// instruction to document "0.15, 0.1, 2/3" as part of the contract rather
// than as implementation details.
type BalanceConfig struct {
	// MaxTries bounds the outer balance() loop (spec: maxNumTries = 5).
	MaxTries int
	// DiffCutoff stops the loop once (max-min)/perfBalance falls below it
	// (spec: 0.15).
	DiffCutoff float64
	// TradeSuccessFraction is the closeness a trade must beat to count as
	// a success and suppress give/take (spec: desiredDelta/10).
	TradeSuccessFraction float64
	// TradeApplyFraction is the closeness a trade must beat merely to be
	// applied at all (spec: 2*desiredDelta/3).
	TradeApplyFraction float64
	// OverageFraction records the bound on how far takeTasks may overshoot
	// desiredDelta (spec: 1.1*desiredDelta). reb.TakeTasks does not read
	// it: its budget is fixed at desiredDelta + desiredDelta/10.
	OverageFraction float64
}

// DefaultBalanceConfig carries the spec's literal constants.
func DefaultBalanceConfig() BalanceConfig {
	return BalanceConfig{
		MaxTries:             5,
		DiffCutoff:           0.15,
		TradeSuccessFraction: 1.0 / 10,
		TradeApplyFraction:   2.0 / 3,
		OverageFraction:      1.1,
	}
}

// TagLimits bounds the tag encoder's field widths (spec §4.1/§9): 256
// collections, 512 per-rank elements, 16 active-message generators.
type TagLimits struct {
	MaxCollections    int
	MaxElementsPerRank int
	MaxGenerators     int
}

func DefaultTagLimits() TagLimits {
	return TagLimits{
		MaxCollections:     256,
		MaxElementsPerRank: 512,
		MaxGenerators:      16,
	}
}

// Config is the runtime-wide configuration object, read via GCO.Get() the
// way the teacher's cmn.GCO serves cmn.Config - so the balancer's tunables
// and tag-field limits are overridable without touching the algorithm.
type Config struct {
	Balance BalanceConfig
	Tags    TagLimits
}

func DefaultConfig() *Config {
	return &Config{
		Balance: DefaultBalanceConfig(),
		Tags:    DefaultTagLimits(),
	}
}

// globalConfigOwner is the GCO singleton: a mutex-guarded pointer to the
// current Config, mirroring the teacher's configOwner/GCO pattern
// (ais/gconfig.go) with go.uber.org/atomic standing in for the teacher's
// vendored 3rdparty/atomic.
type globalConfigOwner struct {
	mtx sync.Mutex
	cfg atomic.Value
}

func (co *globalConfigOwner) Get() *Config {
	v := co.cfg.Load()
	if v == nil {
		return DefaultConfig()
	}
	return v.(*Config)
}

func (co *globalConfigOwner) Put(cfg *Config) {
	co.mtx.Lock()
	defer co.mtx.Unlock()
	co.cfg.Store(cfg)
}

// GCO is the process-wide config owner, in the same spirit as the teacher's
// package-level GCO. It is a package var rather than being threaded through
// every call, so every runtime instance in the process (a LocalCluster runs
// one per simulated rank) reads the same config.
var GCO = &globalConfigOwner{}

func init() {
	GCO.Put(DefaultConfig())
}
