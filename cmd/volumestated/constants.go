package main

import "time"

const (
	defaultIPCSocketPath = "/tmp/volumestate.sock"
	defaultHTTPListen    = "127.0.0.1:3002"
	defaultStatePath     = "/ws/state"
	defaultMetricsPath   = "/metrics"
	healthzPath          = "/healthz"
	defaultLogLevel      = "info"

	defaultWSSendBuf      = 32
	defaultWSBroadcastBuf = 128

	// Buffer sizes for the channels between servers and the daemon loop.
	eventQueueSize     = 64
	broadcastQueueSize = 64

	// How long IPC/WS handlers wait for the daemon loop to answer a snapshot request.
	snapshotTimeout = 1 * time.Second

	httpShutdownTimeout = 3 * time.Second
)

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY   = 0x01
	KEY_MUTE = 113
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)
