// Copyright (C) 2024-2026, Pool Mirror Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import "errors"

// ErrLocationNotFound names the condition of a PoolLocation that references
// an index that has been neither admitted nor resolved through a
// Get*Location lookup. The registry's own With*Write methods report that
// condition by returning false rather than this error. It signals a
// programming error in the caller (the processor always resolves a location
// before writing through it) rather than a data problem.
var ErrLocationNotFound = errors.New("registry: pool location not found")
