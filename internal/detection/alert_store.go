// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// topUsersLimit is the length of the Stats.TopUsers ranking.
const topUsersLimit = 10

// storedAlert pairs an alert with its store-wide record sequence, which
// orders alerts sharing a timestamp.
type storedAlert struct {
	AnomalyAlert
	seq uint64
}

type alertShard struct {
	mu     sync.RWMutex
	byUser map[string][]storedAlert // record order, oldest first
}

// AlertStore is an append-only, in-memory alert log partitioned by user.
// Alerts are only ever removed by PurgeOlderThan.
type AlertStore struct {
	shards [shardCount]alertShard
	seq    atomic.Uint64
}

// NewAlertStore creates an empty store.
func NewAlertStore() *AlertStore {
	s := &AlertStore{}
	for i := range s.shards {
		s.shards[i].byUser = make(map[string][]storedAlert)
	}
	return s
}

func (s *AlertStore) shard(userID string) *alertShard {
	return &s.shards[shardIndex(userID)]
}

// Record appends an alert.
func (s *AlertStore) Record(alert AnomalyAlert) {
	sh := s.shard(alert.UserID)
	sh.mu.Lock()
	sh.byUser[alert.UserID] = append(sh.byUser[alert.UserID], storedAlert{
		AnomalyAlert: alert,
		seq:          s.seq.Add(1),
	})
	sh.mu.Unlock()
}

// ByUser returns the user's alerts newest first. limit <= 0 returns all.
func (s *AlertStore) ByUser(userID string, limit int) []AnomalyAlert {
	sh := s.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	alerts := sh.byUser[userID]
	n := len(alerts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]AnomalyAlert, 0, n)
	for i := len(alerts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, alerts[i].AnomalyAlert)
	}
	return out
}

// HighSeverity returns high and critical alerts across all users, newest
// first. Alerts with equal timestamps come latest recorded first, the same
// order ByUser uses. limit <= 0 returns all.
func (s *AlertStore) HighSeverity(limit int) []AnomalyAlert {
	var found []storedAlert
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, alerts := range sh.byUser {
			for _, a := range alerts {
				if a.Severity.IsHigh() {
					found = append(found, a)
				}
			}
		}
		sh.mu.RUnlock()
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].Timestamp.Equal(found[j].Timestamp) {
			return found[i].Timestamp.After(found[j].Timestamp)
		}
		return found[i].seq > found[j].seq
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	out := make([]AnomalyAlert, len(found))
	for i := range found {
		out[i] = found[i].AnomalyAlert
	}
	return out
}

// Stats aggregates every alert in the store.
func (s *AlertStore) Stats() Stats {
	stats := Stats{
		ByType:     make(map[AlertType]int),
		BySeverity: make(map[Severity]int),
		TopUsers:   []UserAlertCount{},
	}

	var users []UserAlertCount
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for userID, alerts := range sh.byUser {
			if len(alerts) == 0 {
				continue
			}
			for _, a := range alerts {
				stats.ByType[a.Type]++
				stats.BySeverity[a.Severity]++
			}
			stats.TotalAlerts += len(alerts)
			users = append(users, UserAlertCount{
				UserID:     userID,
				Email:      alerts[len(alerts)-1].Email,
				AlertCount: len(alerts),
			})
		}
		sh.mu.RUnlock()
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].AlertCount != users[j].AlertCount {
			return users[i].AlertCount > users[j].AlertCount
		}
		return users[i].UserID < users[j].UserID
	})
	if len(users) > topUsersLimit {
		users = users[:topUsersLimit]
	}
	if users != nil {
		stats.TopUsers = users
	}
	return stats
}

// UserIDs returns every user with at least one alert.
func (s *AlertStore) UserIDs() []string {
	var ids []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for id := range sh.byUser {
			ids = append(ids, id)
		}
		sh.mu.RUnlock()
	}
	return ids
}

// PurgeOlderThan removes the user's alerts older than cutoff and drops the
// bucket when it ends up empty.
func (s *AlertStore) PurgeOlderThan(userID string, cutoff time.Time) (removed int, dropped bool) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	alerts, ok := sh.byUser[userID]
	if !ok {
		return 0, false
	}
	kept := alerts[:0:0]
	for _, a := range alerts {
		if !a.Timestamp.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	removed = len(alerts) - len(kept)
	if len(kept) == 0 {
		delete(sh.byUser, userID)
		return removed, true
	}
	sh.byUser[userID] = kept
	return removed, false
}
