package sample

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pmutool/internal/sample"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var prometheusSamplesGaugeVec = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "pmutool_samples",
		Help: "sampled memory accesses per data source class",
	},
	[]string{"class"},
)

var prometheusStatsGaugeVec = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "pmutool_sampling",
		Help: "sampling totals",
	},
	[]string{"counter"},
)

func startPrometheusServer(listenAddr string) {
	prometheus.MustRegister(prometheusSamplesGaugeVec, prometheusStatsGaugeVec)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("Starting Prometheus metrics server", slog.String("address", listenAddr))
	go func() {
		server := &http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 3 * time.Second,
		}
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Prometheus HTTP server ListenAndServe error", slog.String("error", err.Error()))
		}
	}()
}

func updatePrometheusMetrics(stats sample.Stats) {
	for _, c := range sample.Classes() {
		prometheusSamplesGaugeVec.WithLabelValues(c.String()).Set(float64(stats.Count(c)))
	}
	prometheusStatsGaugeVec.WithLabelValues("total").Set(float64(stats.Total))
	prometheusStatsGaugeVec.WithLabelValues("lost").Set(float64(stats.Lost))
	prometheusStatsGaugeVec.WithLabelValues("corrupt_buffers").Set(float64(stats.Corrupt))
	prometheusStatsGaugeVec.WithLabelValues("avg_weight").Set(stats.AvgWeight())
}

// updatePrometheusLoop re-classifies everything drained so far every interval.
func updatePrometheusLoop(ctx context.Context, log *sample.BufferLog, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agg := sample.NewAggregator()
			agg.AddLog(log)
			updatePrometheusMetrics(agg.Stats())
		}
	}
}
