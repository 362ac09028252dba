// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection wraps a failure to establish or maintain the socket
	// connection, including retry exhaustion.
	ErrConnection = errors.New("stream: connection error")

	// ErrIO wraps a read/write failure on an established connection.
	ErrIO = errors.New("stream: io error")

	// ErrDeserialization wraps a frame payload that failed to decode.
	ErrDeserialization = errors.New("stream: deserialization error")

	// ErrInvalidMessage is returned when a message arrives out of sequence
	// for the Begin/Update/End state machine (spec §4.1).
	ErrInvalidMessage = errors.New("stream: invalid message sequence")
)

// BufferOverflowError reports that committing a block's events to the
// buffer would exceed its capacity (spec §4.1: a hard error at commit time,
// the block's events are not partially buffered).
type BufferOverflowError struct {
	Capacity  int
	Attempted int
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("stream: buffer overflow: capacity %d, attempted %d", e.Capacity, e.Attempted)
}
