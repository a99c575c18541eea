package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "wake_snapshot_rows",
			Help: "Stored wake-round snapshot rows",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM wake_snapshots")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "wake_snapshot_sites",
			Help: "Distinct sites with stored snapshot rows",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(DISTINCT site_id) FROM wake_snapshots")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
