// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package poolstate

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Wire layout: every frame on the socket is
//
//	[len: u32 LE][payload: len bytes]
//
// and payload is [kind: u8][fields...]. This repo defines its own byte-exact
// encoding for the fields the spec leaves emitter-defined (amount0/amount1,
// sqrt_price_x96, liquidity, liquidity_delta); a real deployment must match
// whatever the upstream node extension actually emits (see SPEC_FULL.md §9).

const (
	lenPrefixSize = 4
	addressSize   = 20
	poolIDSize    = 32
	amountSize    = 32 // signed 256-bit, two's complement big-endian
	sqrtPriceSize = 20 // unsigned 160-bit
	liquiditySize = 16 // unsigned 128-bit
	deltaSize     = 16 // signed 128-bit, two's complement big-endian
)

// EncodeFrame serializes msg into a length-prefixed frame ready to write to
// the socket.
func EncodeFrame(msg SocketMessage) ([]byte, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, lenPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(frame[:lenPrefixSize], uint32(len(payload)))
	copy(frame[lenPrefixSize:], payload)
	return frame, nil
}

func encodePayload(msg SocketMessage) ([]byte, error) {
	switch msg.Kind {
	case KindBeginBlock:
		b := msg.BeginBlock
		if b == nil {
			return nil, fmt.Errorf("%w: nil BeginBlock payload", ErrDeserialization)
		}
		buf := make([]byte, 1+8+1)
		buf[0] = byte(KindBeginBlock)
		binary.LittleEndian.PutUint64(buf[1:9], b.BlockNumber)
		buf[9] = boolByte(b.IsRevert)
		return buf, nil

	case KindEndBlock:
		e := msg.EndBlock
		if e == nil {
			return nil, fmt.Errorf("%w: nil EndBlock payload", ErrDeserialization)
		}
		buf := make([]byte, 1+8+8)
		buf[0] = byte(KindEndBlock)
		binary.LittleEndian.PutUint64(buf[1:9], e.BlockNumber)
		binary.LittleEndian.PutUint64(buf[9:17], e.NumUpdates)
		return buf, nil

	case KindPoolUpdate:
		return encodePoolEvent(msg.PoolUpdate)

	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownVariant, msg.Kind)
	}
}

func encodePoolEvent(e *PoolEvent) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil PoolUpdate payload", ErrDeserialization)
	}
	var buf []byte
	buf = append(buf, byte(KindPoolUpdate))

	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], e.BlockNumber)
	buf = append(buf, tmp8[:]...)

	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], e.TxIndex)
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], e.LogIndex)
	buf = append(buf, tmp4[:]...)

	buf = append(buf, protocolTag(e.Protocol), eventTypeTag(e.EventType))
	buf = append(buf, e.PoolAddress[:]...)

	buf = append(buf, presenceByte(e.PoolID != nil))
	if e.PoolID != nil {
		buf = append(buf, e.PoolID[:]...)
	}

	amt0, err := signedToBytes(e.Amount0, amountSize)
	if err != nil {
		return nil, err
	}
	amt1, err := signedToBytes(e.Amount1, amountSize)
	if err != nil {
		return nil, err
	}
	buf = append(buf, amt0...)
	buf = append(buf, amt1...)

	buf = append(buf, presenceByte(e.SqrtPriceX96 != nil))
	if e.SqrtPriceX96 != nil {
		buf = append(buf, uintToBytes(e.SqrtPriceX96, sqrtPriceSize)...)
	}

	buf = append(buf, presenceByte(e.Tick != nil))
	if e.Tick != nil {
		binary.LittleEndian.PutUint32(tmp4[:], uint32(*e.Tick))
		buf = append(buf, tmp4[:]...)
	}

	buf = append(buf, presenceByte(e.Liquidity != nil))
	if e.Liquidity != nil {
		buf = append(buf, uintToBytes(e.Liquidity, liquiditySize)...)
	}

	buf = append(buf, presenceByte(e.TickLower != nil))
	if e.TickLower != nil {
		binary.LittleEndian.PutUint32(tmp4[:], uint32(*e.TickLower))
		buf = append(buf, tmp4[:]...)
	}

	buf = append(buf, presenceByte(e.TickUpper != nil))
	if e.TickUpper != nil {
		binary.LittleEndian.PutUint32(tmp4[:], uint32(*e.TickUpper))
		buf = append(buf, tmp4[:]...)
	}

	buf = append(buf, presenceByte(e.LiquidityDelta != nil))
	if e.LiquidityDelta != nil {
		delta, err := signedToBytes(e.LiquidityDelta, deltaSize)
		if err != nil {
			return nil, err
		}
		buf = append(buf, delta...)
	}

	buf = append(buf, boolByte(e.IsRevert))

	return buf, nil
}

// DecodePayload parses a single payload (the bytes after the length prefix)
// into a SocketMessage.
func DecodePayload(payload []byte) (SocketMessage, error) {
	if len(payload) < 1 {
		return SocketMessage{}, fmt.Errorf("%w: empty payload", ErrTruncatedFrame)
	}
	kind := MessageKind(payload[0])
	rest := payload[1:]

	switch kind {
	case KindBeginBlock:
		if len(rest) < 9 {
			return SocketMessage{}, fmt.Errorf("%w: BeginBlock too short", ErrTruncatedFrame)
		}
		return SocketMessage{
			Kind: KindBeginBlock,
			BeginBlock: &BeginBlockMsg{
				BlockNumber: binary.LittleEndian.Uint64(rest[0:8]),
				IsRevert:    rest[8] != 0,
			},
		}, nil

	case KindEndBlock:
		if len(rest) < 16 {
			return SocketMessage{}, fmt.Errorf("%w: EndBlock too short", ErrTruncatedFrame)
		}
		return SocketMessage{
			Kind: KindEndBlock,
			EndBlock: &EndBlockMsg{
				BlockNumber: binary.LittleEndian.Uint64(rest[0:8]),
				NumUpdates:  binary.LittleEndian.Uint64(rest[8:16]),
			},
		}, nil

	case KindPoolUpdate:
		event, err := decodePoolEvent(rest)
		if err != nil {
			return SocketMessage{}, err
		}
		return SocketMessage{Kind: KindPoolUpdate, PoolUpdate: event}, nil

	default:
		return SocketMessage{}, fmt.Errorf("%w: kind %d", ErrUnknownVariant, kind)
	}
}

func decodePoolEvent(b []byte) (*PoolEvent, error) {
	r := &byteReader{buf: b}

	blockNumber, err := r.u64()
	if err != nil {
		return nil, err
	}
	txIndex, err := r.u32()
	if err != nil {
		return nil, err
	}
	logIndex, err := r.u32()
	if err != nil {
		return nil, err
	}
	protoTag, err := r.u8()
	if err != nil {
		return nil, err
	}
	eventTag, err := r.u8()
	if err != nil {
		return nil, err
	}
	addr, err := r.bytes(addressSize)
	if err != nil {
		return nil, err
	}

	e := &PoolEvent{
		BlockNumber: blockNumber,
		TxIndex:     txIndex,
		LogIndex:    logIndex,
	}
	copy(e.PoolAddress[:], addr)
	e.Protocol, err = protocolFromTag(protoTag)
	if err != nil {
		return nil, err
	}
	e.EventType, err = eventTypeFromTag(eventTag)
	if err != nil {
		return nil, err
	}

	hasPoolID, err := r.u8()
	if err != nil {
		return nil, err
	}
	if hasPoolID != 0 {
		pid, err := r.bytes(poolIDSize)
		if err != nil {
			return nil, err
		}
		var fixed [32]byte
		copy(fixed[:], pid)
		e.PoolID = &fixed
	}

	amt0Bytes, err := r.bytes(amountSize)
	if err != nil {
		return nil, err
	}
	amt1Bytes, err := r.bytes(amountSize)
	if err != nil {
		return nil, err
	}
	e.Amount0 = bytesToSigned(amt0Bytes)
	e.Amount1 = bytesToSigned(amt1Bytes)

	if present, err := r.presence(); err != nil {
		return nil, err
	} else if present {
		buf, err := r.bytes(sqrtPriceSize)
		if err != nil {
			return nil, err
		}
		e.SqrtPriceX96 = new(uint256.Int).SetBytes(buf)
	}

	if present, err := r.presence(); err != nil {
		return nil, err
	} else if present {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		tick := int32(v)
		e.Tick = &tick
	}

	if present, err := r.presence(); err != nil {
		return nil, err
	} else if present {
		buf, err := r.bytes(liquiditySize)
		if err != nil {
			return nil, err
		}
		e.Liquidity = new(uint256.Int).SetBytes(buf)
	}

	if present, err := r.presence(); err != nil {
		return nil, err
	} else if present {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		tl := int32(v)
		e.TickLower = &tl
	}

	if present, err := r.presence(); err != nil {
		return nil, err
	} else if present {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		tu := int32(v)
		e.TickUpper = &tu
	}

	if present, err := r.presence(); err != nil {
		return nil, err
	} else if present {
		buf, err := r.bytes(deltaSize)
		if err != nil {
			return nil, err
		}
		e.LiquidityDelta = bytesToSigned(buf)
	}

	isRevert, err := r.u8()
	if err != nil {
		return nil, err
	}
	e.IsRevert = isRevert != 0

	return e, nil
}

// byteReader is a tiny cursor over a decode buffer; every accessor reports
// ErrTruncatedFrame instead of panicking on a short buffer.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) need(n int) error {
	if len(r.buf)-r.pos < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedFrame, n, len(r.buf)-r.pos)
	}
	return nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) u8() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) presence() (bool, error) {
	b, err := r.u8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func presenceByte(present bool) byte { return boolByte(present) }

func protocolTag(p Protocol) byte {
	switch p {
	case ProtocolV2:
		return 0
	case ProtocolV3:
		return 1
	case ProtocolV4:
		return 2
	default:
		return 0xff
	}
}

func protocolFromTag(tag byte) (Protocol, error) {
	switch tag {
	case 0:
		return ProtocolV2, nil
	case 1:
		return ProtocolV3, nil
	case 2:
		return ProtocolV4, nil
	default:
		return "", fmt.Errorf("%w: protocol tag %d", ErrDeserialization, tag)
	}
}

func eventTypeTag(t EventType) byte {
	switch t {
	case EventSwap:
		return 0
	case EventMint:
		return 1
	case EventBurn:
		return 2
	case EventModifyLiquidity:
		return 3
	default:
		return 0xff
	}
}

func eventTypeFromTag(tag byte) (EventType, error) {
	switch tag {
	case 0:
		return EventSwap, nil
	case 1:
		return EventMint, nil
	case 2:
		return EventBurn, nil
	case 3:
		return EventModifyLiquidity, nil
	default:
		return "", fmt.Errorf("%w: event type tag %d", ErrDeserialization, tag)
	}
}

// signedToBytes encodes x as a big-endian two's-complement value of exactly
// size bytes. x may be nil, which encodes as zero.
func signedToBytes(x *big.Int, size int) ([]byte, error) {
	if x == nil {
		return make([]byte, size), nil
	}
	buf := make([]byte, size)
	if x.Sign() >= 0 {
		b := x.Bytes()
		if len(b) > size {
			return nil, fmt.Errorf("%w: value too large for %d-byte field", ErrDeserialization, size)
		}
		copy(buf[size-len(b):], b)
		return buf, nil
	}
	// two's complement: (1<<bits) + x
	bits := uint(size * 8)
	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	twos := new(big.Int).Add(mod, x)
	b := twos.Bytes()
	if len(b) > size {
		return nil, fmt.Errorf("%w: value too large for %d-byte field", ErrDeserialization, size)
	}
	copy(buf[size-len(b):], b)
	return buf, nil
}

// bytesToSigned decodes a big-endian two's-complement buffer into a signed
// big.Int.
func bytesToSigned(buf []byte) *big.Int {
	v := new(big.Int).SetBytes(buf)
	if len(buf) == 0 {
		return v
	}
	if buf[0]&0x80 != 0 {
		bits := uint(len(buf) * 8)
		mod := new(big.Int).Lsh(big.NewInt(1), bits)
		v.Sub(v, mod)
	}
	return v
}

func uintToBytes(x *uint256.Int, size int) []byte {
	full := x.Bytes32()
	return full[32-size:]
}
