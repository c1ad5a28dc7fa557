package sync

import (
	"context"
	"database/sql"
	"testing"

	"github.com/benjamind10/darkbot/bgg"
	"github.com/benjamind10/darkbot/testutil"
)

func insertTestUser(t *testing.T, dbc *sql.DB, discord, bgguser string, private bool) int64 {
	t.Helper()
	var id int64
	err := dbc.QueryRow(
		`INSERT INTO users (discorduser, bgguser, bggprivate) VALUES ($1, $2, $3) RETURNING id`,
		discord, bgguser, private).Scan(&id)
	if err != nil {
		t.Fatalf("insert test user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = dbc.Exec(`DELETE FROM boardgames WHERE userid = $1`, id)
		_, _ = dbc.Exec(`DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestUpsertGameIdempotent(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	store := &Store{DB: dbc}
	ctx := context.Background()
	userID := insertTestUser(t, dbc, "upsert-test", "upsertuser", false)

	rec := bgg.GameRecord{
		Name: "Catan", BGGID: 13, AvgRating: 7.14,
		Own: true, WantToPlay: true,
		MinPlayers: 3, MaxPlayers: 4, MinPlaytime: 60, NumPlays: 12,
	}
	if err := store.UpsertGame(ctx, userID, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.UpsertGame(ctx, userID, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int
	if err := dbc.QueryRow(`SELECT COUNT(*) FROM boardgames WHERE userid=$1 AND bggid=$2`, userID, rec.BGGID).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want exactly 1 after repeated upserts", count)
	}

	var name string
	var own bool
	var avg float64
	var numplays int
	err := dbc.QueryRow(`SELECT name, own, avgrating, numplays FROM boardgames WHERE userid=$1 AND bggid=$2`,
		userID, rec.BGGID).Scan(&name, &own, &avg, &numplays)
	if err != nil {
		t.Fatalf("read row: %v", err)
	}
	if name != "Catan" || !own || avg != 7.14 || numplays != 12 {
		t.Errorf("row = (%q, %v, %v, %d), want stored field values", name, own, avg, numplays)
	}
}

func TestUpsertGameOverwrites(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	store := &Store{DB: dbc}
	ctx := context.Background()
	userID := insertTestUser(t, dbc, "overwrite-test", "overwriteuser", false)

	rec := bgg.GameRecord{Name: "Azul", BGGID: 230802, Own: true, NumPlays: 1}
	if err := store.UpsertGame(ctx, userID, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	rec.NumPlays = 5
	rec.Own = false
	rec.ForTrade = true
	if err := store.UpsertGame(ctx, userID, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var own, fortrade bool
	var numplays int
	err := dbc.QueryRow(`SELECT own, fortrade, numplays FROM boardgames WHERE userid=$1 AND bggid=$2`,
		userID, rec.BGGID).Scan(&own, &fortrade, &numplays)
	if err != nil {
		t.Fatalf("read row: %v", err)
	}
	if own || !fortrade || numplays != 5 {
		t.Errorf("row = (%v, %v, %d), want updated values", own, fortrade, numplays)
	}
}

func TestMarkCollectionPrivate(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	store := &Store{DB: dbc}
	ctx := context.Background()
	userID := insertTestUser(t, dbc, "private-test", "privateuser", false)

	modified, err := store.MarkCollectionPrivate(ctx, userID)
	if err != nil {
		t.Fatalf("MarkCollectionPrivate: %v", err)
	}
	if modified.IsZero() {
		t.Error("expected non-zero datemodified returned")
	}

	var private bool
	var dm sql.NullTime
	if err := dbc.QueryRow(`SELECT bggprivate, datemodified FROM users WHERE id=$1`, userID).Scan(&private, &dm); err != nil {
		t.Fatalf("read user: %v", err)
	}
	if !private {
		t.Error("bggprivate = false, want true")
	}
	if !dm.Valid || !dm.Time.Equal(modified) {
		t.Errorf("datemodified = %v, want %v", dm, modified)
	}
}

func TestListAccountsFiltering(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	store := &Store{DB: dbc}
	ctx := context.Background()

	withUser := insertTestUser(t, dbc, "list-a", "hasbgg", false)
	privateUser := insertTestUser(t, dbc, "list-b", "privatebgg", true)
	noUser := insertTestUser(t, dbc, "list-c", "", false)

	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if !containsAccount(accounts, withUser) || !containsAccount(accounts, privateUser) {
		t.Errorf("ListAccounts should include all accounts with a bgg username")
	}
	if containsAccount(accounts, noUser) {
		t.Errorf("ListAccounts should exclude accounts without a bgg username")
	}

	candidates, err := store.ListBackfillCandidates(ctx)
	if err != nil {
		t.Fatalf("ListBackfillCandidates: %v", err)
	}
	if !containsAccount(candidates, withUser) {
		t.Errorf("candidates should include non-private account")
	}
	if containsAccount(candidates, privateUser) {
		t.Errorf("candidates should exclude already-private account")
	}
}

func containsAccount(accounts []Account, id int64) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}
