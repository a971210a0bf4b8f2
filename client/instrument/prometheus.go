// SPDX-FileCopyrightText: Copyright (C) 2026  Katzenpost contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package instrument exports backup client counters to Prometheus.
package instrument

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/op/go-logging.v1"

	"github.com/katzenpost/backup/core/wire/commands"
)

var (
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_requests_total",
			Help: "Number of requests sent to the backup server",
		},
		[]string{"code"},
	)
	responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_responses_total",
			Help: "Number of responses received from the backup server",
		},
		[]string{"code"},
	)
	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_retries_total",
			Help: "Number of requests re-sent after a general error",
		},
		[]string{"state"},
	)
	crcMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_crc_mismatches_total",
			Help: "Number of server checksums that did not match the file",
		},
	)
)

func init() {
	prometheus.MustRegister(requests)
	prometheus.MustRegister(responses)
	prometheus.MustRegister(retries)
	prometheus.MustRegister(crcMismatches)
}

// Request increments the counter for sent requests.
func Request(code commands.RequestCode) {
	requests.With(prometheus.Labels{"code": code.String()}).Inc()
}

// Response increments the counter for received responses.
func Response(code commands.ResponseCode) {
	responses.With(prometheus.Labels{"code": code.String()}).Inc()
}

// Retry increments the retry counter for the named session state.
func Retry(state string) {
	retries.With(prometheus.Labels{"state": state}).Inc()
}

// CRCMismatch increments the checksum mismatch counter.
func CRCMismatch() {
	crcMismatches.Inc()
}

// StartPrometheusListener serves /metrics on address until the returned
// server is closed.  The server Addr is the bound address.
func StartPrometheusListener(address string, log *logging.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Noticef("Serving metrics on http://%v/metrics", srv.Addr)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics listener failed: %v", err)
		}
	}()
	return srv, nil
}
