// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stream implements the framed Unix-socket client that ingests
// ordered block-scoped pool events: connection with retry, frame peeling,
// the Begin/Update/End block state machine, and dual buffer/live delivery
// modes (SPEC_FULL.md §4.1).
package stream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/luxfi/poolmirror/internal/pmlog"
	"github.com/luxfi/poolmirror/internal/poolstate"
)

const (
	defaultMaxReconnectAttempts = 10
	defaultReconnectDelay       = 100 * time.Millisecond
	maxReconnectDelay           = 10 * time.Second
	readChunkSize               = 8192
)

// blockState is the client's Begin/Update/End state, matching Idle vs
// InBlock(b, pending) from spec §4.1.
type blockState struct {
	inBlock bool
	block   uint64
	pending []poolstate.PoolEvent
}

// Client owns the socket connection, framing read buffer, pending-block
// scratch, and mode flag. Per spec §5 the client does no work on its own;
// some owner (typically a single dedicated goroutine) must call
// ReadAndProcess in a loop to drive it. mu guards every field below except
// the blocking read itself, so that owner's read loop can run concurrently
// with occasional control calls (SetMode, TakeBufferedEvents, BufferStats)
// made by a coordinator that otherwise owns the client exclusively.
type Client struct {
	socketPath string
	conn       net.Conn
	log        pmlog.Logger

	mu   sync.Mutex
	mode Mode

	readBuf []byte
	state   blockState

	eventBuffer           []poolstate.PoolEvent
	earliestBufferedBlock *uint64
	latestBufferedBlock   *uint64

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	maxReconnectDelay    time.Duration
}

// New returns a client for socketPath with the given initial mode, using the
// default retry policy. Call WithRetry to override it (e.g. from
// config.Config's retry-* knobs).
func New(socketPath string, mode Mode, log pmlog.Logger) *Client {
	return &Client{
		socketPath:           socketPath,
		mode:                 mode,
		log:                  log,
		readBuf:              make([]byte, 0, readChunkSize),
		maxReconnectAttempts: defaultMaxReconnectAttempts,
		reconnectDelay:       defaultReconnectDelay,
		maxReconnectDelay:    maxReconnectDelay,
	}
}

// WithRetry overrides the client's connect-retry policy: maxAttempts tries,
// starting at initialDelay and doubling on each failure up to maxDelay.
// Values <= 0 leave the corresponding default in place.
func (c *Client) WithRetry(maxAttempts int, initialDelay, maxDelay time.Duration) *Client {
	if maxAttempts > 0 {
		c.maxReconnectAttempts = maxAttempts
	}
	if initialDelay > 0 {
		c.reconnectDelay = initialDelay
	}
	if maxDelay > 0 {
		c.maxReconnectDelay = maxDelay
	}
	return c
}

// Connect dials the Unix socket, retrying with exponential backoff (initial
// delay doubling, capped at maxReconnectDelay) up to maxReconnectAttempts
// times.
func (c *Client) Connect() error {
	delay := c.reconnectDelay
	var lastErr error
	for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
		conn, err := net.Dial("unix", c.socketPath)
		if err == nil {
			c.log.Info("connected to unix socket", "path", c.socketPath)
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			return nil
		}
		lastErr = err
		if attempt >= c.maxReconnectAttempts {
			break
		}
		c.log.Warn("connection attempt failed, retrying", "attempt", attempt, "err", err, "delay", delay)
		time.Sleep(delay)
		delay *= 2
		if delay > c.maxReconnectDelay {
			delay = c.maxReconnectDelay
		}
	}
	return fmt.Errorf("%w: failed to connect after %d attempts: %v", ErrConnection, c.maxReconnectAttempts, lastErr)
}

// IsConnected reports whether the client currently holds an open socket.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SetMode assigns the client's operating mode. It does not drain the
// buffer; call TakeBufferedEvents first if the caller wants it emptied.
func (c *Client) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Info("switching stream client mode", "from", c.mode, "to", mode)
	c.mode = mode
}

// Mode returns the client's current operating mode.
func (c *Client) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// BufferedCount returns the number of events currently buffered.
func (c *Client) BufferedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.eventBuffer)
}

// BufferedBlockRange returns the (earliest, latest) buffered block numbers,
// if any events are buffered.
func (c *Client) BufferedBlockRange() (earliest, latest uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferedBlockRangeLocked()
}

func (c *Client) bufferedBlockRangeLocked() (earliest, latest uint64, ok bool) {
	if c.earliestBufferedBlock == nil || c.latestBufferedBlock == nil {
		return 0, 0, false
	}
	return *c.earliestBufferedBlock, *c.latestBufferedBlock, true
}

// TakeBufferedEvents atomically moves the buffer out, sorts it into
// chronological order, resets the block watermarks, and returns it.
func (c *Client) TakeBufferedEvents() []poolstate.PoolEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.eventBuffer
	c.eventBuffer = nil
	c.earliestBufferedBlock = nil
	c.latestBufferedBlock = nil
	poolstate.SortEvents(events)
	return events
}

// BufferStats is a read-only snapshot for monitoring.
type BufferStats struct {
	Mode                  Mode
	BufferedCount         int
	BufferedBlockEarliest uint64
	BufferedBlockLatest   uint64
	HasBufferedRange      bool
	CurrentBlock          uint64
	HasCurrentBlock       bool
	PendingUpdatesCount   int
}

// BufferStats returns a snapshot of the client's current buffering state.
func (c *Client) BufferStats() BufferStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := BufferStats{
		Mode:                c.mode,
		BufferedCount:       len(c.eventBuffer),
		PendingUpdatesCount: len(c.state.pending),
	}
	if e, l, ok := c.bufferedBlockRangeLocked(); ok {
		stats.HasBufferedRange = true
		stats.BufferedBlockEarliest = e
		stats.BufferedBlockLatest = l
	}
	if c.state.inBlock {
		stats.HasCurrentBlock = true
		stats.CurrentBlock = c.state.block
	}
	return stats
}

// ReadAndProcess reads the next chunk from the socket, peels off every
// complete frame in the accumulated buffer, and runs each through the block
// state machine. In Live mode it returns the events of every block completed
// by this call, in order; in Buffering mode completed blocks are appended to
// the buffer and nil is returned. A zero-byte read means the remote end
// closed the connection.
func (c *Client) ReadAndProcess() ([]poolstate.PoolEvent, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnection)
	}

	// The read itself runs outside the lock: it can block for an arbitrary
	// time waiting on the socket, and must not stall control calls
	// (SetMode, TakeBufferedEvents, BufferStats) made by another goroutine.
	chunk := make([]byte, readChunkSize)
	n, err := conn.Read(chunk)
	// A clean close arrives as (0, io.EOF) from Go's net.Conn, not a bare
	// zero-byte read with a nil error; check for either before falling
	// through to the generic I/O error class below.
	if n == 0 || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: socket closed by remote", ErrConnection)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.readBuf = append(c.readBuf, chunk[:n]...)

	var result []poolstate.PoolEvent
	for {
		frame, ok := c.peelFrame()
		if !ok {
			break
		}
		msg, err := poolstate.DecodePayload(frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
		}
		events, err := c.handleMessage(msg)
		if err != nil {
			return nil, err
		}
		result = append(result, events...)
	}
	return result, nil
}

// peelFrame extracts and removes the next complete [len][payload] frame from
// the read buffer, if one is fully present.
func (c *Client) peelFrame() ([]byte, bool) {
	const lenPrefix = 4
	if len(c.readBuf) < lenPrefix {
		return nil, false
	}
	length := uint32(c.readBuf[0]) | uint32(c.readBuf[1])<<8 | uint32(c.readBuf[2])<<16 | uint32(c.readBuf[3])<<24
	total := lenPrefix + int(length)
	if len(c.readBuf) < total {
		return nil, false
	}
	payload := make([]byte, length)
	copy(payload, c.readBuf[lenPrefix:total])
	c.readBuf = c.readBuf[total:]
	return payload, true
}

// handleMessage drives the Begin/Update/End state machine for a single
// decoded message, per the transition table in SPEC_FULL.md §4.1.
func (c *Client) handleMessage(msg poolstate.SocketMessage) ([]poolstate.PoolEvent, error) {
	switch msg.Kind {
	case poolstate.KindBeginBlock:
		if c.state.inBlock {
			c.log.Warn("received BeginBlock while already processing block", "block", c.state.block)
		}
		c.log.Debug("begin block", "block", msg.BeginBlock.BlockNumber, "is_revert", msg.BeginBlock.IsRevert)
		c.state = blockState{inBlock: true, block: msg.BeginBlock.BlockNumber}
		return nil, nil

	case poolstate.KindPoolUpdate:
		if !c.state.inBlock {
			return nil, fmt.Errorf("%w: received PoolUpdate without BeginBlock", ErrInvalidMessage)
		}
		if msg.PoolUpdate.BlockNumber != c.state.block {
			return nil, fmt.Errorf("%w: PoolUpdate block %d doesn't match current block %d",
				ErrInvalidMessage, msg.PoolUpdate.BlockNumber, c.state.block)
		}
		c.state.pending = append(c.state.pending, *msg.PoolUpdate)
		return nil, nil

	case poolstate.KindEndBlock:
		if !c.state.inBlock {
			return nil, fmt.Errorf("%w: received EndBlock without BeginBlock", ErrInvalidMessage)
		}
		if msg.EndBlock.BlockNumber != c.state.block {
			return nil, fmt.Errorf("%w: EndBlock block %d doesn't match current block %d",
				ErrInvalidMessage, msg.EndBlock.BlockNumber, c.state.block)
		}
		if uint64(len(c.state.pending)) != msg.EndBlock.NumUpdates {
			c.log.Warn("EndBlock update count mismatch", "expected", msg.EndBlock.NumUpdates, "got", len(c.state.pending))
		}

		events := c.state.pending
		block := c.state.block
		c.state = blockState{}

		return c.commit(block, events)

	default:
		return nil, fmt.Errorf("%w: unknown message kind", ErrInvalidMessage)
	}
}

// commit delivers a completed block's events per the current mode: Live
// returns them to the caller; Buffering appends them, failing the whole
// commit with BufferOverflowError if capacity would be exceeded.
func (c *Client) commit(block uint64, events []poolstate.PoolEvent) ([]poolstate.PoolEvent, error) {
	if c.mode.Kind == ModeLive {
		c.log.Debug("live processing block", "block", block, "events", len(events))
		return events, nil
	}

	attempted := len(c.eventBuffer) + len(events)
	if attempted > c.mode.Capacity {
		return nil, &BufferOverflowError{Capacity: c.mode.Capacity, Attempted: attempted}
	}

	if c.earliestBufferedBlock == nil {
		c.earliestBufferedBlock = &block
	}
	latest := block
	c.latestBufferedBlock = &latest
	c.eventBuffer = append(c.eventBuffer, events...)

	c.log.Info("buffered events", "block", block, "count", len(events), "total_buffered", len(c.eventBuffer))
	return nil, nil
}

// Disconnect closes the socket, if open.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	c.log.Info("disconnected from unix socket")
	return nil
}
