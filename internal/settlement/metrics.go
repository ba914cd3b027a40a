package settlement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics agrupa os coletores do motor. Um Engine sem Metrics não mede nada.
type Metrics struct {
	bidsPlaced   *prometheus.CounterVec
	stakeTotal   prometheus.Counter
	declarations *prometheus.CounterVec
	bidsSettled  *prometheus.CounterVec
	payoutTotal  prometheus.Counter
	reversed     prometheus.Counter
	revokes      prometheus.Counter
	reprocess    prometheus.Counter
	txDuration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bidsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matka_bids_placed_total", Help: "apostas criadas por categoria",
		}, []string{"game_kind"}),
		stakeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matka_stake_total", Help: "soma dos stakes debitados",
		}),
		declarations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matka_declarations_total", Help: "declarações por sessão e desfecho",
		}, []string{"session", "outcome"}),
		bidsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matka_bids_settled_total", Help: "apostas que saíram de pending",
		}, []string{"status"}),
		payoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matka_payout_total", Help: "valor creditado a ganhadores",
		}),
		reversed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matka_reversed_total", Help: "valor estornado por revogações",
		}),
		revokes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matka_revokes_total", Help: "sessões revogadas",
		}),
		reprocess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matka_reprocess_runs_total", Help: "execuções de reprocessamento",
		}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matka_tx_duration_seconds",
			Help:    "duração das transações do motor",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.bidsPlaced, m.stakeTotal, m.declarations, m.bidsSettled,
		m.payoutTotal, m.reversed, m.revokes, m.reprocess, m.txDuration)
	return m
}

func (m *Metrics) placed(kind string, n int, stake int64) {
	if m == nil {
		return
	}
	m.bidsPlaced.WithLabelValues(kind).Add(float64(n))
	m.stakeTotal.Add(float64(stake))
}

func (m *Metrics) declared(session, outcome string) {
	if m == nil {
		return
	}
	m.declarations.WithLabelValues(session, outcome).Inc()
}

func (m *Metrics) settled(won, lost, refunded int, paid decimal.Decimal) {
	if m == nil {
		return
	}
	m.bidsSettled.WithLabelValues("won").Add(float64(won))
	m.bidsSettled.WithLabelValues("lost").Add(float64(lost))
	m.bidsSettled.WithLabelValues("refunded").Add(float64(refunded))
	m.payoutTotal.Add(paid.InexactFloat64())
}

func (m *Metrics) revoked(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.revokes.Inc()
	m.reversed.Add(amount.InexactFloat64())
}

func (m *Metrics) reprocessed() {
	if m == nil {
		return
	}
	m.reprocess.Inc()
}

func (m *Metrics) observe(op string, start time.Time) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
