package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/internal/domain/stats"
	"github.com/okian/wcalive/pkg/metrics"
)

// Treap-based, in-memory Store implementation with one treap per round.
// Every row of a round shares its event and format, so keys compare the
// same stats.
//
// Ordering: primary stat, then secondary stat (both via attempt.Compare so
// incomplete stats sort after every completed one), then personID ASC.
// In-order traversal yields the round from first to last place.

// key positions a row inside its round.
type key struct {
	primary   attempt.Result
	secondary attempt.Result
	personID  string
}

// keyFor derives the ranking key from a row's stats in display order.
func keyFor(r Row) key {
	ordered := stats.Ordered(r.Stats, r.EventID, r.Format)
	k := key{primary: ordered[0].Value, secondary: attempt.Skipped, personID: r.PersonID}
	if len(ordered) > 1 {
		k.secondary = ordered[1].Value
	}
	return k
}

// compareStats orders keys by their stats only; equal stats share a rank.
func compareStats(a, b key) int {
	if c := attempt.Compare(a.primary, b.primary); c != 0 {
		return c
	}
	return attempt.Compare(a.secondary, b.secondary)
}

func less(a, b key) bool {
	if c := compareStats(a, b); c != 0 {
		return c < 0
	}
	return strings.Compare(a.personID, b.personID) < 0
}

type node struct {
	key   key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k key) *node {
	if n == nil {
		return &node{key: k, prio: rand.Uint64(), size: 1}
	}
	if less(k, n.key) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.key == k:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.key):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// countBetter returns how many rows have strictly better stats than k.
func countBetter(n *node, k key) int {
	count := 0
	for n != nil {
		if compareStats(n.key, k) < 0 {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit keys in ranking order.
func collectTopN(n *node, limit int, out *[]key) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.key)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// round holds one round's treap and the rows it orders.
type round struct {
	eventID string
	format  model.EventFormat
	root    *node
	rows    map[string]record
}

func (r *round) accepts(eventID string, format model.EventFormat) error {
	if r.eventID == eventID && r.format == format {
		return nil
	}
	return fmt.Errorf("%w: round holds %s with %d attempts by %s, got %s with %d attempts by %s",
		ErrFormatMismatch,
		r.eventID, r.format.NumberOfAttempts, r.format.SortBy,
		eventID, format.NumberOfAttempts, format.SortBy)
}

type record struct {
	key key
	row Row
}

type TreapStore struct {
	mu                    sync.RWMutex
	rounds                map[string]*round
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store and starts its metrics updater,
// which runs until ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		rounds:                make(map[string]*round),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops background goroutines.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Upsert implements Store.Upsert with O(log n) expected time.
func (s *TreapStore) Upsert(ctx context.Context, row Row) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if row.RoundID == "" {
		metrics.RecordErrorByComponent("repository", "missing_round")
		return false, ErrMissingRound
	}
	if row.PersonID == "" {
		metrics.RecordErrorByComponent("repository", "missing_person")
		return false, ErrMissingPerson
	}

	row.Rank = 0
	row.Attempts = slices.Clone(row.Attempts)
	k := keyFor(row)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[row.RoundID]
	if !ok {
		r = &round{eventID: row.EventID, format: row.Format, rows: make(map[string]record)}
		s.rounds[row.RoundID] = r
	} else if err := r.accepts(row.EventID, row.Format); err != nil {
		metrics.RecordErrorByComponent("repository", "format_mismatch")
		return false, err
	}
	old, existed := r.rows[row.PersonID]
	if existed {
		r.root = deleteNode(r.root, old.key)
	}
	r.rows[row.PersonID] = record{key: k, row: row}
	r.root = insert(r.root, k)
	return !existed, nil
}

// CheckFormat implements Store.CheckFormat. An unknown round accepts any
// event and format.
func (s *TreapStore) CheckFormat(ctx context.Context, roundID, eventID string, format model.EventFormat) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return nil
	}
	return r.accepts(eventID, format)
}

// Rank returns the person's row and rank in O(log n).
func (s *TreapStore) Rank(ctx context.Context, roundID, personID string) (Row, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[roundID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Row{}, ErrNotFound
	}
	rec, ok := r.rows[personID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Row{}, ErrNotFound
	}
	row := rec.row
	row.Attempts = slices.Clone(row.Attempts)
	row.Rank = countBetter(r.root, rec.key) + 1
	return row, nil
}

// TopN returns the first n rows of a round. An unknown round is empty.
func (s *TreapStore) TopN(ctx context.Context, roundID string, n int) ([]Row, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return []Row{}, nil
	}
	keys := make([]key, 0, min(n, len(r.rows)))
	collectTopN(r.root, n, &keys)

	out := make([]Row, len(keys))
	for i, k := range keys {
		row := r.rows[k.personID].row
		row.Attempts = slices.Clone(row.Attempts)
		out[i] = row
	}
	assignRanks(out, keys)
	return out, nil
}

// Count returns the number of results in the round.
func (s *TreapStore) Count(ctx context.Context, roundID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rounds[roundID]; ok {
		return len(r.rows)
	}
	return 0
}

// Rounds returns the known round ids in lexical order.
func (s *TreapStore) Rounds(ctx context.Context) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rounds))
	for id := range s.rounds {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// assignRanks applies standard competition ranking to rows listed from the
// top of the round: equal stats share a rank and the next rank skips.
func assignRanks(rows []Row, keys []key) {
	for i := range rows {
		if i > 0 && compareStats(keys[i-1], keys[i]) == 0 {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	perRound := make(map[string]int, len(s.rounds))
	total := 0
	for id, r := range s.rounds {
		perRound[id] = len(r.rows)
		total += len(r.rows)
	}
	s.mu.RUnlock()

	metrics.UpdateRepositoryRoundCount(len(perRound))
	metrics.UpdateRepositoryRecordsTotal(total)
	for id, n := range perRound {
		metrics.UpdateRepositoryRecordsPerRound(id, n)
	}
}
