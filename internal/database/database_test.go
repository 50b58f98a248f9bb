package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/comprl/comprl/internal/models"
	"github.com/comprl/comprl/internal/rating"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "comprl.db"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func addUser(t *testing.T, users *UserStore, name, token string, role models.UserRole) int64 {
	t.Helper()
	id, err := users.Add(name, []byte("hash"), token, role)
	if err != nil {
		t.Fatalf("add user %s: %v", name, err)
	}
	return id
}

func TestUserLifecycle(t *testing.T) {
	users := NewUserStore(newTestDB(t))

	id := addUser(t, users, "alice", "token-a", models.RoleUser)
	if id == 0 {
		t.Fatal("want nonzero user id")
	}

	u, err := users.ByToken("token-a")
	if err != nil {
		t.Fatalf("by token: %v", err)
	}
	if u.ID != id || u.Username != "alice" || u.Role != models.RoleUser {
		t.Errorf("got %+v", u)
	}
	if u.Mu != rating.DefaultMu || u.Sigma != rating.DefaultSigma {
		t.Errorf("fresh user rating = (%v, %v), want schema defaults", u.Mu, u.Sigma)
	}

	if _, err := users.ByToken("bogus"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("unknown token: got %v, want sql.ErrNoRows", err)
	}

	if _, err := users.Add("alice", []byte("hash"), "token-b", models.RoleUser); err == nil {
		t.Error("duplicate username should fail")
	}
}

func TestMatchmakingParameters(t *testing.T) {
	users := NewUserStore(newTestDB(t))
	id := addUser(t, users, "bob", "token-b", models.RoleUser)

	if err := users.SetMatchmakingParameters(id, 30.5, 2.25); err != nil {
		t.Fatalf("set: %v", err)
	}
	mu, sigma, err := users.MatchmakingParameters(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mu != 30.5 || sigma != 2.25 {
		t.Errorf("got (%v, %v)", mu, sigma)
	}
}

func TestAddSigmaAll(t *testing.T) {
	users := NewUserStore(newTestDB(t))
	a := addUser(t, users, "a", "ta", models.RoleUser)
	b := addUser(t, users, "b", "tb", models.RoleBot)

	if err := users.AddSigmaAll(0.5); err != nil {
		t.Fatalf("decay: %v", err)
	}
	for _, id := range []int64{a, b} {
		_, sigma, err := users.MatchmakingParameters(id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if want := rating.DefaultSigma + 0.5; sigma != want {
			t.Errorf("user %d sigma = %v, want %v", id, sigma, want)
		}
	}
}

func TestResetRating(t *testing.T) {
	users := NewUserStore(newTestDB(t))
	id := addUser(t, users, "carol", "tc", models.RoleUser)

	if err := users.SetMatchmakingParameters(id, 40, 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := users.ResetRating("carol"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	mu, sigma, err := users.MatchmakingParameters(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mu != rating.DefaultMu || sigma != rating.DefaultSigma {
		t.Errorf("after reset got (%v, %v)", mu, sigma)
	}

	if err := users.ResetRating("nobody"); err == nil {
		t.Error("reset of unknown user should fail")
	}
}

func TestRankedOrder(t *testing.T) {
	users := NewUserStore(newTestDB(t))
	strong := addUser(t, users, "strong", "t1", models.RoleUser)
	weak := addUser(t, users, "weak", "t2", models.RoleUser)
	addUser(t, users, "fresh", "t3", models.RoleUser)

	// score = mu - 3*sigma: strong 30-3=27, fresh 25-24.999≈0, weak 10-3=7.
	if err := users.SetMatchmakingParameters(strong, 30, 1); err != nil {
		t.Fatal(err)
	}
	if err := users.SetMatchmakingParameters(weak, 10, 1); err != nil {
		t.Fatal(err)
	}

	ranked, err := users.Ranked()
	if err != nil {
		t.Fatalf("ranked: %v", err)
	}
	var names []string
	for _, u := range ranked {
		names = append(names, u.Username)
	}
	want := []string{"strong", "weak", "fresh"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ranking = %v, want %v", names, want)
		}
	}
}

func TestGameResults(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	games := NewGameStore(db)

	alice := addUser(t, users, "alice", "ta", models.RoleUser)
	bob := addUser(t, users, "bob", "tb", models.RoleUser)

	start := time.Now().UTC().Truncate(time.Second)
	win := &models.GameResult{
		GameID:    models.NewGameID(),
		User1ID:   alice,
		User2ID:   bob,
		Score1:    5,
		Score2:    2,
		StartTime: start,
		EndState:  models.EndStateWin,
		WinnerID:  &alice,
	}
	if err := games.Add(win); err != nil {
		t.Fatalf("add win: %v", err)
	}

	draw := &models.GameResult{
		GameID:    models.NewGameID(),
		User1ID:   alice,
		User2ID:   bob,
		Score1:    3,
		Score2:    3,
		StartTime: start,
		EndState:  models.EndStateDraw,
	}
	if err := games.Add(draw); err != nil {
		t.Fatalf("add draw: %v", err)
	}

	disc := &models.GameResult{
		GameID:         models.NewGameID(),
		User1ID:        alice,
		User2ID:        bob,
		Score1:         0,
		Score2:         0,
		StartTime:      start,
		EndState:       models.EndStateDisconnected,
		DisconnectedID: &bob,
	}
	if err := games.Add(disc); err != nil {
		t.Fatalf("add disconnected: %v", err)
	}

	// game_id is unique
	if err := games.Add(win); err == nil {
		t.Error("duplicate game_id should fail")
	}

	recent, err := games.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d games, want 3", len(recent))
	}
	if recent[0].GameID != disc.GameID {
		t.Errorf("newest first: got %s", recent[0].GameID)
	}
	if recent[2].Winner == nil || *recent[2].Winner != "alice" {
		t.Errorf("win row winner = %v", recent[2].Winner)
	}
	if recent[1].Winner != nil {
		t.Errorf("draw row has winner %v", *recent[1].Winner)
	}

	wins, draws, losses, err := games.UserStatistics(alice)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if wins != 1 || draws != 1 || losses != 0 {
		t.Errorf("alice w/d/l = %d/%d/%d, want 1/1/0", wins, draws, losses)
	}

	pairs, err := games.PairStatistics(bob)
	if err != nil {
		t.Fatalf("pair statistics: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Opponent != "alice" {
		t.Fatalf("pairs = %+v", pairs)
	}
	if pairs[0].Wins != 0 || pairs[0].Draws != 1 || pairs[0].Losses != 1 {
		t.Errorf("bob vs alice = %+v, want 0/1/1", pairs[0])
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	games := NewGameStore(newTestDB(t))
	err := games.Add(&models.GameResult{
		GameID:    models.NewGameID(),
		User1ID:   999,
		User2ID:   998,
		StartTime: time.Now(),
		EndState:  models.EndStateDraw,
	})
	if err == nil {
		t.Error("insert with unknown users should fail")
	}
}
