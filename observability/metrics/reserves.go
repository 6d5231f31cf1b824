package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"klendrisk/native/lending"
)

// ReserveMetrics exports per-reserve gauges refreshed whenever a market
// snapshot is loaded.
type ReserveMetrics struct {
	utilization *prometheus.GaugeVec
	borrowAPR   *prometheus.GaugeVec
	supplyAPR   *prometheus.GaugeVec
	depositTVL  *prometheus.GaugeVec
	borrowTVL   *prometheus.GaugeVec
	limitHit    *prometheus.GaugeVec
}

var (
	reservesOnce     sync.Once
	reservesRegistry *ReserveMetrics
)

func Reserves() *ReserveMetrics {
	reservesOnce.Do(func() {
		labels := []string{"market", "reserve", "symbol"}
		reservesRegistry = &ReserveMetrics{
			utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "klendrisk_reserve_utilization_ratio",
				Help: "Estimated borrowed over supplied liquidity.",
			}, labels),
			borrowAPR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "klendrisk_reserve_borrow_apr",
				Help: "Estimated borrow APR at the snapshot slot.",
			}, labels),
			supplyAPR: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "klendrisk_reserve_supply_apr",
				Help: "Estimated supply APR at the snapshot slot.",
			}, labels),
			depositTVL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "klendrisk_reserve_deposit_tvl_usd",
				Help: "Deposited value in USD.",
			}, labels),
			borrowTVL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "klendrisk_reserve_borrow_tvl_usd",
				Help: "Borrowed value in USD.",
			}, labels),
			limitHit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "klendrisk_reserve_limit_crossed",
				Help: "1 when the deposit or borrow limit has been crossed.",
			}, []string{"market", "reserve", "symbol", "limit"}),
		}
		prometheus.MustRegister(
			reservesRegistry.utilization,
			reservesRegistry.borrowAPR,
			reservesRegistry.supplyAPR,
			reservesRegistry.depositTVL,
			reservesRegistry.borrowTVL,
			reservesRegistry.limitHit,
		)
	})
	return reservesRegistry
}

func (m *ReserveMetrics) Record(market lending.Address, summary lending.ReserveSummary) {
	if m == nil {
		return
	}
	labels := []string{market.String(), summary.Address.String(), summary.Symbol}
	m.utilization.WithLabelValues(labels...).Set(summary.Utilization.InexactFloat64())
	m.borrowAPR.WithLabelValues(labels...).Set(summary.BorrowAPR.InexactFloat64())
	m.supplyAPR.WithLabelValues(labels...).Set(summary.SupplyAPR.InexactFloat64())
	m.depositTVL.WithLabelValues(labels...).Set(summary.DepositTVL.InexactFloat64())
	m.borrowTVL.WithLabelValues(labels...).Set(summary.BorrowTVL.InexactFloat64())
	m.limitHit.WithLabelValues(append(labels, "deposit")...).Set(flag(summary.DepositLimitCrossed))
	m.limitHit.WithLabelValues(append(labels, "borrow")...).Set(flag(summary.BorrowLimitCrossed))
}

// RecordMarket refreshes every reserve of m at slot.
func (m *ReserveMetrics) RecordMarket(market *lending.Market, slot uint64) {
	if m == nil || market == nil {
		return
	}
	for _, reserve := range market.Reserves() {
		m.Record(market.Address(), reserve.Summary(slot, market.ReferralFeeBps()))
	}
}

func flag(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
