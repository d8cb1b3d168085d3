// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// ResultSuccess labels successfully processed items and attempts.
	ResultSuccess = "success"
	// ResultFailure labels failed items and attempts.
	ResultFailure = "failure"
	// ResultSkipped labels items skipped by dry run.
	ResultSkipped = "skipped"
)

func fqn(name string) string {
	return prometheus.BuildFQName("brc20", "inscriber", name)
}

var (
	ItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fqn("items_total"),
			Help: "Processed batch items by workflow and result",
		},
		[]string{"workflow", "result"},
	)

	BroadcastAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fqn("broadcast_attempts_total"),
			Help: "Transaction broadcast attempts by transaction kind and result",
		},
		[]string{"kind", "result"},
	)

	BalanceBackoffTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: fqn("balance_backoff_total"),
		Help: "Commit target reductions caused by insufficient balance",
	})

	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fqn("phase_duration_seconds"),
			Help:    "Duration of inscription phases",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(
		ItemsTotal,
		BroadcastAttempts,
		BalanceBackoffTotal,
		PhaseDuration,
	)
}

// ObservePhase records duration of the phase started at started.
func ObservePhase(phase string, started time.Time) {
	PhaseDuration.WithLabelValues(phase).Observe(time.Since(started).Seconds())
}

// Result returns result label for err.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}

	return ResultSuccess
}

// ListenAndServe serves metrics on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
