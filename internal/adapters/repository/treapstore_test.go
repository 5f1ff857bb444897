package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/wcalive/internal/domain/attempt"
	"github.com/okian/wcalive/internal/domain/model"
)

var ao5 = model.EventFormat{NumberOfAttempts: 5, SortBy: model.SortByAverage}

func row(person string, best, average int) Row {
	return Row{
		RoundID:  "333-r1",
		PersonID: person,
		EventID:  "333",
		Format:   ao5,
		Stats:    model.Stats{Best: attempt.Result(best), Average: attempt.Result(average)},
	}
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if count := store.Count(ctx, "333-r1"); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	created, err := store.Upsert(ctx, row("alice", 800, 900))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected first upsert to create the row")
	}
	if count := store.Count(ctx, "333-r1"); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	got, err := store.Rank(ctx, "333-r1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Rank != 1 || got.Stats.Average != 900 {
		t.Errorf("unexpected row %+v", got)
	}

	rows, err := store.TopN(ctx, "333-r1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].PersonID != "alice" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestTreapStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	mustUpsert(t, store, row("alice", 800, 900))
	mustUpsert(t, store, row("bob", 850, 950))

	// a correction may make alice worse
	created, err := store.Upsert(ctx, row("alice", 800, 1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected replace, got create")
	}
	if count := store.Count(ctx, "333-r1"); count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}

	got, _ := store.Rank(ctx, "333-r1", "alice")
	if got.Rank != 2 {
		t.Errorf("expected alice to drop to 2, got %d", got.Rank)
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	mustUpsert(t, store, row("dnf-average", 500, -1))
	mustUpsert(t, store, row("slow", 1200, 1500))
	mustUpsert(t, store, row("fast", 700, 800))
	mustUpsert(t, store, row("no-average", 600, 0))
	mustUpsert(t, store, row("same-average-worse-best", 750, 800))

	rows, err := store.TopN(ctx, "333-r1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"fast", "same-average-worse-best", "slow", "dnf-average", "no-average"}
	for i, id := range want {
		if rows[i].PersonID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, rows[i].PersonID)
		}
		if rows[i].Rank != i+1 {
			t.Errorf("position %d: expected rank %d, got %d", i, i+1, rows[i].Rank)
		}
	}
}

func TestTreapStore_SortByBest(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	bo3 := model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByBest}
	for _, r := range []Row{
		{RoundID: "333bf-r1", PersonID: "a", EventID: "333bf", Format: bo3, Stats: model.Stats{Best: 3000, Average: -1}},
		{RoundID: "333bf-r1", PersonID: "b", EventID: "333bf", Format: bo3, Stats: model.Stats{Best: 2500, Average: -1}},
		{RoundID: "333bf-r1", PersonID: "c", EventID: "333bf", Format: bo3, Stats: model.Stats{Best: 3000, Average: 3500}},
	} {
		mustUpsert(t, store, r)
	}

	rows, _ := store.TopN(ctx, "333bf-r1", 3)
	got := []string{rows[0].PersonID, rows[1].PersonID, rows[2].PersonID}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestTreapStore_Ties(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	mustUpsert(t, store, row("carol", 700, 800))
	mustUpsert(t, store, row("alice", 700, 800))
	mustUpsert(t, store, row("bob", 600, 700))
	mustUpsert(t, store, row("dave", 900, 1000))

	rows, err := store.TopN(ctx, "333-r1", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs := []string{"bob", "alice", "carol", "dave"}
	wantRanks := []int{1, 2, 2, 4}
	for i := range rows {
		if rows[i].PersonID != wantIDs[i] || rows[i].Rank != wantRanks[i] {
			t.Errorf("position %d: expected %s@%d, got %s@%d", i, wantIDs[i], wantRanks[i], rows[i].PersonID, rows[i].Rank)
		}
	}

	for _, id := range []string{"alice", "carol"} {
		got, _ := store.Rank(ctx, "333-r1", id)
		if got.Rank != 2 {
			t.Errorf("%s: expected shared rank 2, got %d", id, got.Rank)
		}
	}
	if got, _ := store.Rank(ctx, "333-r1", "dave"); got.Rank != 4 {
		t.Errorf("dave: expected rank 4, got %d", got.Rank)
	}
}

func TestTreapStore_RoundsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	mustUpsert(t, store, row("alice", 700, 800))
	other := row("alice", 9000, 9500)
	other.RoundID = "333-r2"
	mustUpsert(t, store, other)

	if got, _ := store.Rank(ctx, "333-r2", "alice"); got.Stats.Best != 9000 {
		t.Errorf("expected round 2 row, got %+v", got)
	}
	if got := store.Rounds(ctx); len(got) != 2 || got[0] != "333-r1" || got[1] != "333-r2" {
		t.Errorf("unexpected rounds %v", got)
	}
}

func TestTreapStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if _, err := store.Rank(ctx, "333-r1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	mustUpsert(t, store, row("alice", 700, 800))
	if _, err := store.Rank(ctx, "333-r1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.TopN(ctx, "333-r1", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := store.Upsert(ctx, Row{PersonID: "x"}); !errors.Is(err, ErrMissingRound) {
		t.Errorf("expected ErrMissingRound, got %v", err)
	}
	if _, err := store.Upsert(ctx, Row{RoundID: "r"}); !errors.Is(err, ErrMissingPerson) {
		t.Errorf("expected ErrMissingPerson, got %v", err)
	}
	rows, err := store.TopN(ctx, "unknown", 5)
	if err != nil || len(rows) != 0 {
		t.Errorf("expected empty unknown round, got %v %v", rows, err)
	}
}

func TestTreapStore_RoundFormatIsPinned(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	bo3 := model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByBest}
	ao3 := model.EventFormat{NumberOfAttempts: 3, SortBy: model.SortByAverage}
	mixed := func(person string, best, average int, format model.EventFormat) Row {
		return Row{
			RoundID: "r", PersonID: person, EventID: "333", Format: format,
			Stats: model.Stats{Best: attempt.Result(best), Average: attempt.Result(average)},
		}
	}

	mustUpsert(t, store, mixed("a", 500, 900, bo3))
	for _, r := range []Row{mixed("b", 600, 700, ao3), mixed("c", 550, 800, ao3)} {
		if _, err := store.Upsert(ctx, r); !errors.Is(err, ErrFormatMismatch) {
			t.Errorf("%s: expected ErrFormatMismatch, got %v", r.PersonID, err)
		}
	}
	other := mixed("d", 450, 600, bo3)
	other.EventID = "222"
	if _, err := store.Upsert(ctx, other); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("expected ErrFormatMismatch for another event, got %v", err)
	}
	mustUpsert(t, store, mixed("c", 550, 800, bo3))

	rows, err := store.TopN(ctx, "r", 10)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(rows) != 2 || rows[0].PersonID != "a" || rows[1].PersonID != "c" {
		t.Errorf("expected a then c ranked by best, got %+v", rows)
	}

	if err := store.CheckFormat(ctx, "r", "333", ao3); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("CheckFormat: expected ErrFormatMismatch, got %v", err)
	}
	if err := store.CheckFormat(ctx, "r", "333", bo3); err != nil {
		t.Errorf("CheckFormat: expected nil for the pinned format, got %v", err)
	}
	if err := store.CheckFormat(ctx, "unknown", "444", ao3); err != nil {
		t.Errorf("CheckFormat: expected unknown round to accept any format, got %v", err)
	}
}

func TestTreapStore_AttemptsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	r := row("alice", 700, 800)
	r.Attempts = []attempt.Result{700, 800, 900}
	mustUpsert(t, store, r)
	r.Attempts[0] = -1

	got, _ := store.Rank(ctx, "333-r1", "alice")
	if got.Attempts[0] != 700 {
		t.Errorf("stored attempts were aliased: %v", got.Attempts)
	}
}

func TestTreapStore_RandomizedAgainstSort(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	rng := rand.New(rand.NewSource(7))
	latest := make(map[string]Row)
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("p%03d", rng.Intn(300))
		avg := rng.Intn(50) + 700
		if rng.Intn(10) == 0 {
			avg = -1
		}
		r := row(id, rng.Intn(50)+600, avg)
		mustUpsert(t, store, r)
		latest[id] = r
	}

	expected := make([]Row, 0, len(latest))
	for _, r := range latest {
		expected = append(expected, r)
	}
	sort.Slice(expected, func(i, j int) bool { return less(keyFor(expected[i]), keyFor(expected[j])) })

	rows, err := store.TopN(ctx, "333-r1", len(expected))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range expected {
		if rows[i].PersonID != expected[i].PersonID {
			t.Fatalf("position %d: expected %s, got %s", i, expected[i].PersonID, rows[i].PersonID)
		}
		ranked, _ := store.Rank(ctx, "333-r1", rows[i].PersonID)
		if ranked.Rank != rows[i].Rank {
			t.Fatalf("%s: Rank=%d TopN=%d", rows[i].PersonID, ranked.Rank, rows[i].Rank)
		}
	}
}

func TestTreapStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("w%d-p%d", w, i%50)
				if _, err := store.Upsert(ctx, row(id, 600+i, 700+i)); err != nil {
					t.Errorf("upsert: %v", err)
				}
				_, _ = store.TopN(ctx, "333-r1", 10)
				_, _ = store.Rank(ctx, "333-r1", id)
			}
		}(w)
	}
	wg.Wait()

	if count := store.Count(ctx, "333-r1"); count != 400 {
		t.Errorf("expected 400 rows, got %d", count)
	}
}

func mustUpsert(t *testing.T, s *TreapStore, r Row) {
	t.Helper()
	if _, err := s.Upsert(context.Background(), r); err != nil {
		t.Fatalf("upsert %s: %v", r.PersonID, err)
	}
}
