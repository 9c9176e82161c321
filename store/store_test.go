package store

import (
	"context"
	"errors"
	"testing"

	"github.com/legionews/legio/wpmap"
)

func TestOpenMemory_SchemaApplied(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	// A representative write per table family proves the schema landed.
	if err := s.UpsertUser(ctx, User{ID: 1, Username: "ivan", Name: "Ivan", Role: "user", Points: 100, Level: 1, CreatedAt: "2021-01-01 00:00:00"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if err := s.UpsertNews(ctx, News{ID: 1, Title: "t", Category: "general", CreatedAt: "2021-01-01 00:00:00"}); err != nil {
		t.Fatalf("UpsertNews: %v", err)
	}
	if err := s.UpsertPointsSettings(ctx, wpmap.DefaultPointsSettings); err != nil {
		t.Fatalf("UpsertPointsSettings: %v", err)
	}
}

func TestUpsertUser_Idempotent(t *testing.T) {
	// WHAT: re-upserting the same id updates in place instead of failing.
	// WHY: incremental sync replays every source row on each run.
	s := OpenMemory(t)
	ctx := context.Background()

	u := User{ID: 5, Username: "anna", Name: "Anna", Role: "user", Points: 100, Level: 1, CreatedAt: "2021-01-01 00:00:00"}
	if err := s.UpsertUser(ctx, u); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	u.Points = 1500
	u.Level = 2
	u.Role = "creator"
	if err := s.UpsertUser(ctx, u); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.AccountByUsername(ctx, "anna")
	if err != nil {
		t.Fatalf("AccountByUsername: %v", err)
	}
	if got.Points != 1500 || got.Level != 2 || got.Role != "creator" {
		t.Errorf("account after upsert = %+v", got)
	}
}

func TestPromoteFirstAdmin(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	// No users: must be a silent no-op.
	if err := s.PromoteFirstAdmin(ctx); err != nil {
		t.Fatalf("PromoteFirstAdmin on empty table: %v", err)
	}

	for id, name := range map[int64]string{7: "seven", 3: "three"} {
		if err := s.UpsertUser(ctx, User{ID: id, Username: name, Name: name, Role: "user", CreatedAt: "2021-01-01 00:00:00"}); err != nil {
			t.Fatalf("seed user %d: %v", id, err)
		}
	}
	if err := s.PromoteFirstAdmin(ctx); err != nil {
		t.Fatalf("PromoteFirstAdmin: %v", err)
	}

	got, err := s.AccountByUsername(ctx, "three")
	if err != nil {
		t.Fatalf("AccountByUsername: %v", err)
	}
	if got.Role != "admin" {
		t.Errorf("lowest-id user role = %q, want admin", got.Role)
	}
}

func TestReplacePollOptions_CounterMap(t *testing.T) {
	// WHAT: the returned map keys on the plugin counter, not the index.
	s := OpenMemory(t)
	ctx := context.Background()
	seedPollFixture(t, s)

	options := []wpmap.PollOption{
		{Index: 1, Counter: 2, Text: "second"},
		{Index: 0, Counter: 5, Text: "fifth"},
	}
	counterMap, err := s.ReplacePollOptions(ctx, 10, options)
	if err != nil {
		t.Fatalf("ReplacePollOptions: %v", err)
	}
	if len(counterMap) != 2 {
		t.Fatalf("counterMap has %d entries, want 2", len(counterMap))
	}
	if counterMap[2] == 0 || counterMap[5] == 0 {
		t.Errorf("counters 2 and 5 must both map to option ids, got %v", counterMap)
	}

	// Replacing again discards old option rows.
	again, err := s.ReplacePollOptions(ctx, 10, options[:1])
	if err != nil {
		t.Fatalf("second ReplacePollOptions: %v", err)
	}
	if len(again) != 1 {
		t.Errorf("after replace, %d options mapped, want 1", len(again))
	}
}

func TestInsertVote_DuplicateIgnored(t *testing.T) {
	// WHAT: a second vote by the same user on the same poll is dropped.
	s := OpenMemory(t)
	ctx := context.Background()
	seedPollFixture(t, s)

	counterMap, err := s.ReplacePollOptions(ctx, 10, []wpmap.PollOption{{Counter: 1, Text: "a"}, {Counter: 2, Text: "b"}})
	if err != nil {
		t.Fatalf("ReplacePollOptions: %v", err)
	}

	v := Vote{UserID: 1, PollID: 10, OptionID: counterMap[1], CreatedAt: "2021-01-01 00:00:00"}
	if err := s.InsertVote(ctx, v); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	v.OptionID = counterMap[2]
	if err := s.InsertVote(ctx, v); err != nil {
		t.Fatalf("duplicate vote: %v", err)
	}

	result, err := s.ResolvePoll(ctx, 10, counterMap[1])
	if err != nil {
		t.Fatalf("ResolvePoll: %v", err)
	}
	if result.TotalVotes != 1 {
		t.Errorf("total votes = %d, want 1 (duplicate must be ignored)", result.TotalVotes)
	}
}

func TestClearSyncedTables(t *testing.T) {
	// WHAT: a full replace wipes content tables but keeps points_settings.
	s := OpenMemory(t)
	ctx := context.Background()
	seedPollFixture(t, s)

	custom := wpmap.PointsSettings{StartPoints: 42, WinsPoints: 7, LevelPoints: 500}
	if err := s.UpsertPointsSettings(ctx, custom); err != nil {
		t.Fatalf("UpsertPointsSettings: %v", err)
	}

	if err := s.ClearSyncedTables(ctx); err != nil {
		t.Fatalf("ClearSyncedTables: %v", err)
	}

	if _, err := s.AccountByUsername(ctx, "voter"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("users survived clear: %v", err)
	}
	settings, err := s.PointsSettings(ctx)
	if err != nil {
		t.Fatalf("PointsSettings: %v", err)
	}
	if settings != custom {
		t.Errorf("settings after clear = %+v, want %+v", settings, custom)
	}
}

func TestAccountByUsername_NotFound(t *testing.T) {
	s := OpenMemory(t)
	if _, err := s.AccountByUsername(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, User{ID: 1, Username: "ivan", Name: "Ivan", Password: "old", CreatedAt: "2021-01-01 00:00:00"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.UpdatePassword(ctx, 1, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	got, err := s.AccountByUsername(ctx, "ivan")
	if err != nil {
		t.Fatalf("AccountByUsername: %v", err)
	}
	if got.Password != "new-hash" {
		t.Errorf("password = %q, want new-hash", got.Password)
	}

	if err := s.UpdatePassword(ctx, 999, "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}

// seedPollFixture creates a user, a news row, and poll 10 attached to it.
func seedPollFixture(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.UpsertUser(ctx, User{ID: 1, Username: "voter", Name: "Voter", Role: "user", Points: 100, Level: 1, CreatedAt: "2021-01-01 00:00:00"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := s.UpsertNews(ctx, News{ID: 10, Title: "n", Category: "general", CreatedAt: "2021-01-01 00:00:00"}); err != nil {
		t.Fatalf("seed news: %v", err)
	}
	if err := s.UpsertPoll(ctx, 10, "Q?"); err != nil {
		t.Fatalf("seed poll: %v", err)
	}
}
