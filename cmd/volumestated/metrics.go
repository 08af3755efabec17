package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	volumeOnGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volumestate_volume_on",
			Help: "Current volume flag (1 = on, 0 = off)",
		},
	)

	togglesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "volumestate_toggles_total",
			Help: "Total number of volume toggles applied",
		},
	)

	wsClientsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "volumestate_ws_clients",
			Help: "Number of connected state websocket clients",
		},
	)

	ipcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volumestate_ipc_requests_total",
			Help: "Total number of IPC requests by event type and status",
		},
		[]string{"type", "status"},
	)
)

func setVolumeOnGauge(on bool) {
	if on {
		volumeOnGauge.Set(1)
		return
	}
	volumeOnGauge.Set(0)
}
