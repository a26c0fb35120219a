// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxAttemptsPerUser is the per-user history cap.
const DefaultMaxAttemptsPerUser = 100

// userHistory is one user's bucket: attempts oldest first plus the known
// device and location sets.
type userHistory struct {
	attempts  []LoginAttempt
	devices   map[string]struct{}
	locations map[string]struct{}
}

type attemptShard struct {
	mu    sync.RWMutex
	users map[string]*userHistory
}

// AttemptStore keeps a bounded, in-memory attempt history per user.
type AttemptStore struct {
	maxPerUser int
	shards     [shardCount]attemptShard
}

// NewAttemptStore creates a store capping each user at maxPerUser attempts.
func NewAttemptStore(maxPerUser int) *AttemptStore {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxAttemptsPerUser
	}
	s := &AttemptStore{maxPerUser: maxPerUser}
	for i := range s.shards {
		s.shards[i].users = make(map[string]*userHistory)
	}
	return s
}

func (s *AttemptStore) shard(userID string) *attemptShard {
	return &s.shards[shardIndex(userID)]
}

// Append adds an attempt and evicts from the front once the cap is exceeded.
// It returns the number of evicted attempts.
func (s *AttemptStore) Append(attempt LoginAttempt) int {
	sh := s.shard(attempt.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h := sh.users[attempt.UserID]
	if h == nil {
		h = &userHistory{
			devices:   make(map[string]struct{}),
			locations: make(map[string]struct{}),
		}
		sh.users[attempt.UserID] = h
	}

	h.attempts = append(h.attempts, attempt)
	evicted := len(h.attempts) - s.maxPerUser
	if evicted <= 0 {
		return 0
	}
	// Copy into a fresh slice so the evicted prefix can be collected.
	kept := make([]LoginAttempt, s.maxPerUser, s.maxPerUser+1)
	copy(kept, h.attempts[evicted:])
	h.attempts = kept
	return evicted
}

// Remember records the device key and, when non-empty, the location key as
// known for the user. It must follow Append for the same user.
func (s *AttemptStore) Remember(userID, deviceKey, locationKey string) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h := sh.users[userID]
	if h == nil {
		return
	}
	if deviceKey != "" {
		h.devices[deviceKey] = struct{}{}
	}
	if locationKey != "" {
		h.locations[locationKey] = struct{}{}
	}
}

// Snapshot returns a deep copy of the user's history. The result is safe to
// read from several goroutines.
func (s *AttemptStore) Snapshot(userID string) *Snapshot {
	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	snap := &Snapshot{
		UserID:         userID,
		KnownDevices:   make(map[string]struct{}),
		KnownLocations: make(map[string]struct{}),
	}
	h := sh.users[userID]
	if h == nil {
		return snap
	}
	snap.Attempts = make([]LoginAttempt, len(h.attempts))
	copy(snap.Attempts, h.attempts)
	for k := range h.devices {
		snap.KnownDevices[k] = struct{}{}
	}
	for k := range h.locations {
		snap.KnownLocations[k] = struct{}{}
	}
	return snap
}

// Attempts returns a copy of the user's attempts, oldest first.
func (s *AttemptStore) Attempts(userID string) []LoginAttempt {
	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	h := sh.users[userID]
	if h == nil {
		return nil
	}
	out := make([]LoginAttempt, len(h.attempts))
	copy(out, h.attempts)
	return out
}

// Recent returns the user's attempts with a timestamp at or after since.
func (s *AttemptStore) Recent(userID string, since time.Time) []LoginAttempt {
	return recentAttempts(s.Attempts(userID), since)
}

// SuccessfulWithLocation returns up to limit successful attempts that carry a
// location, newest first.
func (s *AttemptStore) SuccessfulWithLocation(userID string, limit int) []LoginAttempt {
	return successfulWithLocation(s.Attempts(userID), limit)
}

// Len returns the number of attempts held for the user.
func (s *AttemptStore) Len(userID string) int {
	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if h := sh.users[userID]; h != nil {
		return len(h.attempts)
	}
	return 0
}

// UserCount returns the number of users with a bucket.
func (s *AttemptStore) UserCount() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.users)
		sh.mu.RUnlock()
	}
	return n
}

// UserIDs returns every user with a bucket, in no particular order.
func (s *AttemptStore) UserIDs() []string {
	var ids []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for id := range sh.users {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	return ids
}

// PurgeOlderThan removes the user's attempts older than cutoff. A bucket
// left without attempts is dropped together with its known sets.
func (s *AttemptStore) PurgeOlderThan(userID string, cutoff time.Time) (removed int, dropped bool) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h := sh.users[userID]
	if h == nil {
		return 0, false
	}

	kept := h.attempts[:0:0]
	for _, a := range h.attempts {
		if !a.Timestamp.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	removed = len(h.attempts) - len(kept)
	if len(kept) == 0 {
		delete(sh.users, userID)
		return removed, true
	}
	h.attempts = kept
	return removed, false
}

// Snapshot is a point-in-time, read-only copy of one user's history.
type Snapshot struct {
	UserID         string
	Attempts       []LoginAttempt // oldest first
	KnownDevices   map[string]struct{}
	KnownLocations map[string]struct{}
}

// Recent returns attempts at or after since.
func (s *Snapshot) Recent(since time.Time) []LoginAttempt {
	return recentAttempts(s.Attempts, since)
}

// SuccessfulWithLocation returns up to limit successful located attempts, newest first.
func (s *Snapshot) SuccessfulWithLocation(limit int) []LoginAttempt {
	return successfulWithLocation(s.Attempts, limit)
}

// Successful returns all successful attempts.
func (s *Snapshot) Successful() []LoginAttempt {
	var out []LoginAttempt
	for _, a := range s.Attempts {
		if a.Success {
			out = append(out, a)
		}
	}
	return out
}

func recentAttempts(attempts []LoginAttempt, since time.Time) []LoginAttempt {
	var out []LoginAttempt
	for _, a := range attempts {
		if !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	return out
}

func successfulWithLocation(attempts []LoginAttempt, limit int) []LoginAttempt {
	var out []LoginAttempt
	for _, a := range attempts {
		if a.Success && a.GeoLocation != nil {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
