// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package stream

// ModeKind distinguishes the two client operating modes.
type ModeKind uint8

const (
	// ModeBuffering accumulates events in memory for later replay via
	// TakeBufferedEvents. It is used during cold start and incremental add,
	// bounded by Capacity.
	ModeBuffering ModeKind = iota
	// ModeLive returns each completed block's events immediately from
	// ReadAndProcess instead of buffering them.
	ModeLive
)

// Mode is the client's current operating mode. Buffering carries a capacity;
// Live carries none.
type Mode struct {
	Kind     ModeKind
	Capacity int
}

// Buffering returns a Buffering mode with the given capacity.
func Buffering(capacity int) Mode {
	return Mode{Kind: ModeBuffering, Capacity: capacity}
}

// Live returns the Live mode.
func Live() Mode {
	return Mode{Kind: ModeLive}
}

func (m Mode) String() string {
	if m.Kind == ModeLive {
		return "Live"
	}
	return "Buffering"
}
