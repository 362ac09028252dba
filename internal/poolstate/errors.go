// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package poolstate

import "errors"

var (
	ErrInvalidIdentifier = errors.New("poolstate: invalid pool identifier")
	ErrDeserialization    = errors.New("poolstate: deserialization error")
	ErrTruncatedFrame     = errors.New("poolstate: truncated frame")
	ErrUnknownVariant     = errors.New("poolstate: unknown message variant")
)
