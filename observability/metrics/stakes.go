package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StakesMetrics struct {
	created        prometheus.Counter
	resolved       *prometheus.CounterVec
	slashed        prometheus.Counter
	withdrawn      prometheus.Counter
	rewardsClaimed prometheus.Counter
	activeStaked   prometheus.Gauge
	reserve        prometheus.Gauge
}

var (
	stakesOnce     sync.Once
	stakesRegistry *StakesMetrics
)

func Stakes() *StakesMetrics {
	stakesOnce.Do(func() {
		stakesRegistry = &StakesMetrics{
			created: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakes_created_total",
				Help: "Count of stakes accepted by the ledger.",
			}),
			resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stakes_resolved_total",
				Help: "Count of stake resolutions by outcome.",
			}, []string{"outcome"}),
			slashed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakes_slashed_total",
				Help: "Count of stakes forcibly terminated.",
			}),
			withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakes_withdrawn_total",
				Help: "Count of resolved stakes paid back to their stakers.",
			}),
			rewardsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakes_rewards_claimed_total",
				Help: "Count of reward claim payouts.",
			}),
			activeStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "stakes_active_staked",
				Help: "Total value currently in active stakes.",
			}),
			reserve: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "stakes_rewards_reserve",
				Help: "Value currently held to back reward payouts.",
			}),
		}
		prometheus.MustRegister(
			stakesRegistry.created,
			stakesRegistry.resolved,
			stakesRegistry.slashed,
			stakesRegistry.withdrawn,
			stakesRegistry.rewardsClaimed,
			stakesRegistry.activeStaked,
			stakesRegistry.reserve,
		)
	})
	return stakesRegistry
}

func (m *StakesMetrics) ObserveCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}

func (m *StakesMetrics) ObserveResolved(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.resolved.WithLabelValues(outcome).Inc()
}

func (m *StakesMetrics) ObserveSlashed() {
	if m == nil {
		return
	}
	m.slashed.Inc()
}

func (m *StakesMetrics) ObserveWithdrawn() {
	if m == nil {
		return
	}
	m.withdrawn.Inc()
}

func (m *StakesMetrics) ObserveRewardsClaimed() {
	if m == nil {
		return
	}
	m.rewardsClaimed.Inc()
}

// SetTotals mirrors the ledger aggregates into gauges. Values wider than a
// float64 lose precision here; the gauges are operational signals, not the
// source of truth.
func (m *StakesMetrics) SetTotals(activeStaked, reserve *big.Int) {
	if m == nil {
		return
	}
	if activeStaked != nil {
		value, _ := new(big.Float).SetInt(activeStaked).Float64()
		m.activeStaked.Set(value)
	}
	if reserve != nil {
		value, _ := new(big.Float).SetInt(reserve).Float64()
		m.reserve.Set(value)
	}
}
