// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shardCount must be a power of two.
const shardCount = 64

func shardIndex(userID string) int {
	return int(xxhash.Sum64String(userID) & (shardCount - 1))
}

// userLocks serializes snapshot, detect and commit for one user. Users that
// hash to different shards never contend.
//
// Lock order: a user lock is always taken before any store shard lock.
type userLocks struct {
	shards [shardCount]sync.Mutex
}

func (l *userLocks) lock(userID string) func() {
	m := &l.shards[shardIndex(userID)]
	m.Lock()
	return m.Unlock
}
