// Package metrics exposes Prometheus instrumentation for the bot's poll
// lifecycle and scheduler. Counters are package-level and safe for concurrent
// use; Serve starts an optional /metrics listener.
//
// Label cardinality is kept deliberately small: "variant" is one of
// "reaction" or "mega", everything else is unlabeled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// VotesProcessed counts accepted vote events by poll variant.
	VotesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_votes_processed_total",
			Help: "Total number of vote events processed.",
		},
		[]string{"variant"},
	)

	// VotesRejected counts vote events rejected because the poll was closed
	// or the emoji/option was unknown.
	VotesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_votes_rejected_total",
			Help: "Total number of vote events rejected.",
		},
		[]string{"variant", "reason"},
	)

	// PollsClosed counts poll closures.
	PollsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_polls_closed_total",
			Help: "Total number of polls closed.",
		},
	)

	// RewardsGranted counts first-vote rewards.
	RewardsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_vote_rewards_granted_total",
			Help: "Total number of first-vote rewards granted.",
		},
	)

	// DailySends counts daily scheduler fires that performed a send.
	DailySends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_daily_sends_total",
			Help: "Total number of daily content sends.",
		},
	)
)

// Serve exposes /metrics on addr. It blocks, so callers run it in a
// goroutine; an empty addr disables metrics and returns immediately.
func Serve(addr string, log zerolog.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("metrics listener starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics listener failed")
	}
}
