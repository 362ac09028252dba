// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package poolstate

// MessageKind tags which SocketMessage variant a frame carries.
type MessageKind uint8

const (
	KindBeginBlock MessageKind = iota
	KindPoolUpdate
	KindEndBlock
)

// SocketMessage is the tagged union decoded from a single framed payload.
// Exactly one of BeginBlock/PoolUpdate/EndBlock is meaningful, selected by
// Kind.
type SocketMessage struct {
	Kind MessageKind

	BeginBlock *BeginBlockMsg
	PoolUpdate *PoolEvent
	EndBlock   *EndBlockMsg
}

// BeginBlockMsg opens a block-scoped batch of pool updates.
type BeginBlockMsg struct {
	BlockNumber uint64
	IsRevert    bool
}

// EndBlockMsg closes the batch opened by the matching BeginBlockMsg.
type EndBlockMsg struct {
	BlockNumber uint64
	NumUpdates  uint64
}
