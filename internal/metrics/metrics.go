package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SwapsTotal counts swaps by terminal outcome
	SwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_swaps_total",
			Help: "Total number of cross-chain swaps by status",
		},
		[]string{"status"},
	)

	// SwapDuration tracks end-to-end swap execution time
	SwapDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimizer_swap_duration_seconds",
			Help:    "Swap execution duration in seconds",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 3600},
		},
	)

	// ActiveSwaps tracks the number of swaps in a non-terminal state
	ActiveSwaps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "optimizer_active_swaps",
			Help: "Number of swaps currently in a non-terminal state",
		},
	)

	// QuotesTotal counts quotes by whether optimization was recommended
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_quotes_total",
			Help: "Total number of quotes served",
		},
		[]string{"optimized"},
	)

	// QuoteSavingsUSD tracks the projected savings of accepted recommendations
	QuoteSavingsUSD = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimizer_quote_savings_usd",
			Help:    "Projected USD savings of quotes that recommended switching chains",
			Buckets: []float64{0.1, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	// GasPrice tracks the latest gas price per chain in native units
	GasPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optimizer_gas_price",
			Help: "Latest gas price per chain in native gas units",
		},
		[]string{"chain"},
	)

	// PriceUpdatesTotal counts accepted gas price updates per chain
	PriceUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_price_updates_total",
			Help: "Total number of accepted gas price updates",
		},
		[]string{"chain"},
	)

	// Paused reports whether initiation is administratively halted
	Paused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "optimizer_paused",
			Help: "1 when swap initiation is paused, 0 otherwise",
		},
	)

	// ErrorsTotal counts rejected API calls by error category
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_errors_total",
			Help: "Total number of rejected API calls",
		},
		[]string{"category"},
	)
)
