package main

import "log/slog"

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// translateInputEvent maps a raw input event to a daemon Event.
// Only a mute key press toggles; repeats and releases are ignored so holding
// the key does not flap the flag.
func translateInputEvent(ev inputEvent) (Event, bool) {
	if ev.Type != EV_KEY || ev.Code != KEY_MUTE {
		return nil, false
	}
	if ev.Value != evValuePress {
		return nil, false
	}
	return ToggleVolume{}, true
}

// forwardInputEvents translates raw events into daemon events until raw is closed.
func forwardInputEvents(raw <-chan inputEvent, events chan<- Event, logger *slog.Logger) {
	for ev := range raw {
		out, ok := translateInputEvent(ev)
		if !ok {
			continue
		}
		select {
		case events <- out:
		default:
			logger.Warn("input toggle dropped (event queue full)")
		}
	}
}
