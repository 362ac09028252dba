// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package poolstate

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBeginBlock(t *testing.T) {
	msg := SocketMessage{Kind: KindBeginBlock, BeginBlock: &BeginBlockMsg{BlockNumber: 42, IsRevert: true}}
	frame, err := EncodeFrame(msg)
	require.NoError(t, err)

	length := uint32(frame[0]) | uint32(frame[1])<<8 | uint32(frame[2])<<16 | uint32(frame[3])<<24
	require.EqualValues(t, len(frame)-4, length)

	got, err := DecodePayload(frame[4:])
	require.NoError(t, err)
	require.Equal(t, KindBeginBlock, got.Kind)
	require.Equal(t, uint64(42), got.BeginBlock.BlockNumber)
	require.True(t, got.BeginBlock.IsRevert)
}

func TestEncodeDecodeEndBlock(t *testing.T) {
	msg := SocketMessage{Kind: KindEndBlock, EndBlock: &EndBlockMsg{BlockNumber: 7, NumUpdates: 3}}
	frame, err := EncodeFrame(msg)
	require.NoError(t, err)

	got, err := DecodePayload(frame[4:])
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.EndBlock.BlockNumber)
	require.Equal(t, uint64(3), got.EndBlock.NumUpdates)
}

func TestEncodeDecodePoolUpdateV2(t *testing.T) {
	evt := &PoolEvent{
		BlockNumber: 100,
		TxIndex:     2,
		LogIndex:    5,
		Protocol:    ProtocolV2,
		EventType:   EventSwap,
		Amount0:     big.NewInt(-500),
		Amount1:     big.NewInt(500),
	}
	copy(evt.PoolAddress[:], randBytes(20))

	msg := SocketMessage{Kind: KindPoolUpdate, PoolUpdate: evt}
	frame, err := EncodeFrame(msg)
	require.NoError(t, err)

	got, err := DecodePayload(frame[4:])
	require.NoError(t, err)
	require.Equal(t, KindPoolUpdate, got.Kind)
	require.Equal(t, evt.PoolAddress, got.PoolUpdate.PoolAddress)
	require.Equal(t, 0, evt.Amount0.Cmp(got.PoolUpdate.Amount0))
	require.Equal(t, 0, evt.Amount1.Cmp(got.PoolUpdate.Amount1))
	require.Nil(t, got.PoolUpdate.PoolID)
	require.Nil(t, got.PoolUpdate.SqrtPriceX96)
}

func TestEncodeDecodePoolUpdateV3Mint(t *testing.T) {
	lower, upper := int32(-100), int32(100)
	evt := &PoolEvent{
		BlockNumber:    55,
		Protocol:       ProtocolV3,
		EventType:      EventMint,
		TickLower:      &lower,
		TickUpper:      &upper,
		LiquidityDelta: big.NewInt(-12345),
		Amount0:        big.NewInt(0),
		Amount1:        big.NewInt(0),
	}

	frame, err := EncodeFrame(SocketMessage{Kind: KindPoolUpdate, PoolUpdate: evt})
	require.NoError(t, err)

	got, err := DecodePayload(frame[4:])
	require.NoError(t, err)
	require.Equal(t, lower, *got.PoolUpdate.TickLower)
	require.Equal(t, upper, *got.PoolUpdate.TickUpper)
	require.Equal(t, 0, evt.LiquidityDelta.Cmp(got.PoolUpdate.LiquidityDelta))
}

func TestEncodeDecodePoolUpdateV4Swap(t *testing.T) {
	var poolID [32]byte
	copy(poolID[:], randBytes(32))
	tick := int32(-4200)

	evt := &PoolEvent{
		BlockNumber:  9000,
		Protocol:     ProtocolV4,
		EventType:    EventSwap,
		PoolID:       &poolID,
		SqrtPriceX96: uint256.NewInt(123456789),
		Tick:         &tick,
		Liquidity:    uint256.NewInt(987654321),
		Amount0:      big.NewInt(1_000_000),
		Amount1:      big.NewInt(-999_000),
	}

	frame, err := EncodeFrame(SocketMessage{Kind: KindPoolUpdate, PoolUpdate: evt})
	require.NoError(t, err)

	got, err := DecodePayload(frame[4:])
	require.NoError(t, err)
	require.Equal(t, poolID, *got.PoolUpdate.PoolID)
	require.Equal(t, tick, *got.PoolUpdate.Tick)
	require.True(t, evt.SqrtPriceX96.Eq(got.PoolUpdate.SqrtPriceX96))
	require.True(t, evt.Liquidity.Eq(got.PoolUpdate.Liquidity))
}

func TestDecodeTruncatedFrame(t *testing.T) {
	_, err := DecodePayload([]byte{byte(KindBeginBlock), 1, 2})
	require.ErrorIs(t, err, ErrTruncatedFrame)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := DecodePayload([]byte{0xaa})
	require.ErrorIs(t, err, ErrUnknownVariant)
}

func TestSortEventsChronological(t *testing.T) {
	events := []PoolEvent{
		{BlockNumber: 3, TxIndex: 0, LogIndex: 0},
		{BlockNumber: 1, TxIndex: 5, LogIndex: 0},
		{BlockNumber: 1, TxIndex: 2, LogIndex: 9},
		{BlockNumber: 1, TxIndex: 2, LogIndex: 1},
		{BlockNumber: 2, TxIndex: 0, LogIndex: 0},
	}
	SortEvents(events)

	for i := 1; i < len(events); i++ {
		require.True(t, !events[i].Less(&events[i-1]))
	}
	require.Equal(t, uint64(1), events[0].BlockNumber)
	require.Equal(t, uint32(2), events[0].TxIndex)
	require.Equal(t, uint32(1), events[0].LogIndex)
}

func TestParsePoolIdentifier(t *testing.T) {
	addr := "0x" + "11223344556677889900aabbccddeeff00112233"
	id, err := ParsePoolIdentifier(addr, ProtocolV2)
	require.NoError(t, err)
	require.Equal(t, KindAddress, id.Kind)

	poolID := "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	id2, err := ParsePoolIdentifier(poolID, ProtocolV4)
	require.NoError(t, err)
	require.Equal(t, KindPoolID, id2.Kind)

	_, err = ParsePoolIdentifier("not-hex", ProtocolV2)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = ParsePoolIdentifier(addr, "sushi_v1")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}
