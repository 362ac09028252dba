// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package stream

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/poolmirror/internal/pmlog"
	"github.com/luxfi/poolmirror/internal/poolstate"
)

func newPipeClient(t *testing.T, mode Mode) (*Client, net.Conn) {
	t.Helper()
	server, clientConn := net.Pipe()
	c := New("/unused", mode, pmlog.Discard())
	c.conn = clientConn
	t.Cleanup(func() { server.Close(); clientConn.Close() })
	return c, server
}

func writeFrame(t *testing.T, conn net.Conn, msg poolstate.SocketMessage) {
	t.Helper()
	frame, err := poolstate.EncodeFrame(msg)
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)
}

func v2SwapEvent(block uint64, tx, log uint32) poolstate.PoolEvent {
	return poolstate.PoolEvent{
		BlockNumber: block,
		TxIndex:     tx,
		LogIndex:    log,
		Protocol:    poolstate.ProtocolV2,
		EventType:   poolstate.EventSwap,
		Amount0:     big.NewInt(1),
		Amount1:     big.NewInt(-1),
	}
}

func TestLiveModeReturnsCompletedBlock(t *testing.T) {
	c, server := newPipeClient(t, Live())

	done := make(chan []poolstate.PoolEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		// net.Pipe delivers one written frame per read, so the block only
		// completes on the read that carries its EndBlock.
		for {
			events, err := c.ReadAndProcess()
			if err != nil {
				errCh <- err
				return
			}
			if events != nil {
				done <- events
				return
			}
		}
	}()

	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindBeginBlock, BeginBlock: &poolstate.BeginBlockMsg{BlockNumber: 1}})
	evt := v2SwapEvent(1, 0, 0)
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindPoolUpdate, PoolUpdate: &evt})
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindEndBlock, EndBlock: &poolstate.EndBlockMsg{BlockNumber: 1, NumUpdates: 1}})

	select {
	case events := <-done:
		require.Len(t, events, 1)
		require.Equal(t, uint64(1), events[0].BlockNumber)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for block")
	}
}

func TestBufferingModeAccumulatesAndCapsCapacity(t *testing.T) {
	c, server := newPipeClient(t, Buffering(1))

	errCh := make(chan error, 1)
	doneCh := make(chan struct{}, 1)
	go func() {
		// One read per frame written below (net.Pipe has no buffering).
		for i := 0; i < 3; i++ {
			if _, err := c.ReadAndProcess(); err != nil {
				errCh <- err
				return
			}
		}
		doneCh <- struct{}{}
	}()

	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindBeginBlock, BeginBlock: &poolstate.BeginBlockMsg{BlockNumber: 1}})
	evt := v2SwapEvent(1, 0, 0)
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindPoolUpdate, PoolUpdate: &evt})
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindEndBlock, EndBlock: &poolstate.EndBlockMsg{BlockNumber: 1, NumUpdates: 1}})

	select {
	case <-doneCh:
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	require.Equal(t, 1, c.BufferedCount())

	// A second block would push the buffer over capacity 1.
	go func() {
		for {
			if _, err := c.ReadAndProcess(); err != nil {
				errCh <- err
				return
			}
		}
	}()
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindBeginBlock, BeginBlock: &poolstate.BeginBlockMsg{BlockNumber: 2}})
	evt2 := v2SwapEvent(2, 0, 0)
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindPoolUpdate, PoolUpdate: &evt2})
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindEndBlock, EndBlock: &poolstate.EndBlockMsg{BlockNumber: 2, NumUpdates: 1}})

	select {
	case err := <-errCh:
		var overflow *BufferOverflowError
		require.ErrorAs(t, err, &overflow)
		require.Equal(t, 1, overflow.Capacity)
		require.Equal(t, 2, overflow.Attempted)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for overflow")
	}
}

func TestByteAtATimeFraming(t *testing.T) {
	c, server := newPipeClient(t, Live())

	evt := v2SwapEvent(7, 1, 2)
	msg := poolstate.SocketMessage{Kind: poolstate.KindPoolUpdate, PoolUpdate: &evt}
	beginFrame, err := poolstate.EncodeFrame(poolstate.SocketMessage{Kind: poolstate.KindBeginBlock, BeginBlock: &poolstate.BeginBlockMsg{BlockNumber: 7}})
	require.NoError(t, err)
	updateFrame, err := poolstate.EncodeFrame(msg)
	require.NoError(t, err)
	endFrame, err := poolstate.EncodeFrame(poolstate.SocketMessage{Kind: poolstate.KindEndBlock, EndBlock: &poolstate.EndBlockMsg{BlockNumber: 7, NumUpdates: 1}})
	require.NoError(t, err)

	all := append(append(append([]byte{}, beginFrame...), updateFrame...), endFrame...)

	resultCh := make(chan []poolstate.PoolEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		for {
			events, err := c.ReadAndProcess()
			if err != nil {
				errCh <- err
				return
			}
			if events != nil {
				resultCh <- events
				return
			}
		}
	}()

	go func() {
		for _, b := range all {
			server.Write([]byte{b})
			time.Sleep(time.Millisecond)
		}
	}()

	select {
	case events := <-resultCh:
		require.Len(t, events, 1)
		require.Equal(t, uint64(7), events[0].BlockNumber)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestFramingViolationPoolUpdateWithoutBeginBlock(t *testing.T) {
	c, server := newPipeClient(t, Live())

	errCh := make(chan error, 1)
	go func() {
		_, err := c.ReadAndProcess()
		errCh <- err
	}()

	evt := v2SwapEvent(1, 0, 0)
	writeFrame(t, server, poolstate.SocketMessage{Kind: poolstate.KindPoolUpdate, PoolUpdate: &evt})

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrInvalidMessage)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestModeSwitchDoesNotDrainBuffer(t *testing.T) {
	c, _ := newPipeClient(t, Buffering(10))
	c.eventBuffer = []poolstate.PoolEvent{v2SwapEvent(1, 0, 0)}
	c.SetMode(Live())
	require.Equal(t, ModeLive, c.Mode().Kind)
	require.Equal(t, 1, c.BufferedCount())
}

func TestTakeBufferedEventsSortsAndResets(t *testing.T) {
	c, _ := newPipeClient(t, Buffering(10))
	c.eventBuffer = []poolstate.PoolEvent{
		v2SwapEvent(3, 0, 0),
		v2SwapEvent(1, 5, 0),
		v2SwapEvent(1, 2, 1),
	}
	earliest, latest := uint64(1), uint64(3)
	c.earliestBufferedBlock = &earliest
	c.latestBufferedBlock = &latest

	events := c.TakeBufferedEvents()
	require.Len(t, events, 3)
	require.Equal(t, uint64(1), events[0].BlockNumber)
	require.EqualValues(t, 2, events[0].TxIndex)
	require.Zero(t, c.BufferedCount())
	_, _, ok := c.BufferedBlockRange()
	require.False(t, ok)
}
