package main

import (
	"context"
	"log/slog"

	"volumestate/store"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The daemon loop is the application root for the volume store:
//   - It is the only goroutine that reads or mutates the store.
//   - IPC, WebSocket clients and input devices send Events; snapshots are
//     answered through reply channels.
//   - Store change notifications are turned into StateBroadcasts for the
//     WebSocket broadcaster and mirrored into metrics.
//
// ============================================================================

// runDaemon applies events to st until ctx is canceled or events is closed.
// broadcasts may be nil when nothing consumes state changes.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	st *store.Store,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if st == nil {
		logger.Error("daemon store is nil")
		return
	}

	setVolumeOnGauge(st.IsVolumeOn())

	cancel := st.Subscribe(func(c store.Change) {
		logger.Info("volume toggled", "store", store.Name, "is_volume_on", c.IsVolumeOn, "seq", c.Seq)
		togglesTotal.Inc()
		setVolumeOnGauge(c.IsVolumeOn)

		if broadcasts == nil {
			return
		}
		// Never block the owner goroutine on a slow consumer.
		select {
		case broadcasts <- BroadcastVolumeChanged{IsVolumeOn: c.IsVolumeOn, Seq: c.Seq, At: c.At}:
		default:
			logger.Warn("state broadcast queue full, dropping change", "seq", c.Seq)
		}
	})
	defer cancel()

	logger.Info("daemon starting", "store", store.Name, "is_volume_on", st.IsVolumeOn())

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			applyEvent(st, ev, logger)
		}
	}
}

// applyEvent applies a single event to the store. It must only be called by the daemon loop.
func applyEvent(st *store.Store, ev Event, logger *slog.Logger) {
	switch e := ev.(type) {
	case TimedEvent:
		logger.Debug("event received", "type", eventName(e.Event), "at", e.At)
		applyEvent(st, e.Event, logger)

	case ToggleVolume:
		st.ToggleVolume()
		if e.Reply != nil {
			replySnapshot(st, e.Reply, logger)
		}

	case RequestStateSnapshot:
		if e.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		replySnapshot(st, e.Reply, logger)

	default:
		logger.Warn("unknown event type", "type", eventName(ev))
	}
}

func replySnapshot(st *store.Store, reply chan<- StateSnapshot, logger *slog.Logger) {
	select {
	case reply <- snapshotFromStore(st.Snapshot()):
	default:
		logger.Warn("state snapshot reply channel not ready; dropping snapshot")
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case ToggleVolume:
		return "toggle_volume"
	case RequestStateSnapshot:
		return "get_state"
	case TimedEvent:
		return "timed"
	default:
		return "unknown"
	}
}
