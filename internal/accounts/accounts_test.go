package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/runeshard/server/internal/config"
	"github.com/runeshard/server/internal/entities"
	"github.com/runeshard/server/internal/persist"
	"github.com/runeshard/server/internal/terrain"
	"github.com/runeshard/server/internal/world"
	"golang.org/x/crypto/bcrypt"
)

func newTable() *Table {
	t := NewTable()
	t.cost = bcrypt.MinCost
	t.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return t
}

func newWorld(t *testing.T) *world.World {
	t.Helper()
	reg := world.NewTypeRegistry()
	entities.Register(reg)
	w := world.New(reg, nil)
	m, err := world.NewMap(0, "Felucca", terrain.NewGrid(64, 64, terrain.LandTile{ID: 3}), nil, 16, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddMap(m); err != nil {
		t.Fatal(err)
	}
	return w
}

func newCharacter(t *testing.T, w *world.World) *entities.Creature {
	t.Helper()
	c, err := world.NewMobile(w, entities.NewCreature)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCreateAndGetIgnoreCase(t *testing.T) {
	tbl := newTable()
	a, err := tbl.Create("Alice", "secret", Player)
	if err != nil {
		t.Fatal(err)
	}
	if a.Username != "Alice" || a.PasswordHash == "secret" {
		t.Errorf("account = %+v", a)
	}
	if _, err := tbl.Create("ALICE", "other", Player); !errors.Is(err, ErrExists) {
		t.Errorf("create duplicate: err = %v, want ErrExists", err)
	}
	got, ok := tbl.Get("  alice ")
	if !ok || got != a {
		t.Error("case-insensitive lookup failed")
	}

	tests := []struct {
		name, user, pass string
		want             error
	}{
		{"empty name", " ", "secret", ErrInvalidName},
		{"control char", "bob\n", "secret", ErrInvalidName},
		{"leading tab", "\tbob", "secret", ErrInvalidName},
		{"embedded nul", "bo\x00b", "secret", ErrInvalidName},
		{"short password", "bob", "abc", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tbl.Create(tt.user, tt.pass, Player); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if tbl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tbl.Len())
	}
}

func TestAuthenticate(t *testing.T) {
	tbl := newTable()
	if _, err := tbl.Create("gm", "hunter2", GameMaster); err != nil {
		t.Fatal(err)
	}

	a, err := tbl.Authenticate("GM", "hunter2")
	if err != nil || a.AccessLevel != GameMaster {
		t.Fatalf("Authenticate = %v, %v", a, err)
	}
	if _, err := tbl.Authenticate("gm", "hunter3"); !errors.Is(err, ErrBadPassword) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := tbl.Authenticate("nobody", "hunter2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown account: err = %v", err)
	}
	if err := tbl.SetBanned("gm", true); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Authenticate("gm", "hunter2"); !errors.Is(err, ErrBanned) {
		t.Errorf("banned account: err = %v", err)
	}
}

func TestAddCharacter(t *testing.T) {
	w := newWorld(t)
	tbl := newTable()
	for _, name := range []string{"a", "b"} {
		if _, err := tbl.Create(name, "secret", Player); err != nil {
			t.Fatal(err)
		}
	}

	first := newCharacter(t, w)
	if err := tbl.AddCharacter("a", first); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AddCharacter("a", first); err != nil {
		t.Errorf("re-adding the same character: %v", err)
	}
	if err := tbl.AddCharacter("b", first); !errors.Is(err, ErrCharacterClaimed) {
		t.Errorf("claimed character: err = %v", err)
	}
	if err := tbl.AddCharacter("missing", first); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing account: err = %v", err)
	}

	for len(tbl.Characters("a")) < MaxCharacters {
		if err := tbl.AddCharacter("a", newCharacter(t, w)); err != nil {
			t.Fatal(err)
		}
	}
	extra := newCharacter(t, w)
	if err := tbl.AddCharacter("a", extra); !errors.Is(err, ErrCharactersFull) {
		t.Errorf("full account: err = %v", err)
	}

	// A deleted character frees its slot.
	first.Delete()
	if got := len(tbl.Characters("a")); got != MaxCharacters-1 {
		t.Errorf("live characters = %d, want %d", got, MaxCharacters-1)
	}
	if err := tbl.AddCharacter("a", extra); err != nil {
		t.Errorf("slot freed by delete: %v", err)
	}
	if err := tbl.AddCharacter("b", first); !errors.Is(err, world.ErrDeleted) {
		t.Errorf("deleted character: err = %v", err)
	}
}

func TestSavedWithWorld(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.PersistenceConfig{Dir: dir, Backups: 1, RetryAttempts: 1, RetryBase: time.Millisecond}

	src := newWorld(t)
	tbl := newTable()
	if _, err := tbl.Create("Owner", "secret", Owner); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Create("banned", "secret", Player); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SetBanned("banned", true); err != nil {
		t.Fatal(err)
	}
	char := newCharacter(t, src)
	if err := tbl.AddCharacter("owner", char); err != nil {
		t.Fatal(err)
	}

	eng := persist.NewEngine(src, cfg, nil)
	if err := eng.AddParticipant(tbl); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Save(ctx); err != nil {
		t.Fatal(err)
	}

	dst := newWorld(t)
	got := newTable()
	load := persist.NewEngine(dst, cfg, nil)
	if err := load.AddParticipant(got); err != nil {
		t.Fatal(err)
	}
	if _, err := load.Load(ctx); err != nil {
		t.Fatal(err)
	}

	a, ok := got.Get("OWNER")
	if !ok {
		t.Fatal("owner account missing after load")
	}
	if a.Username != "Owner" || a.AccessLevel != Owner || !a.Created.Equal(tbl.now()) {
		t.Errorf("loaded account = %+v", a)
	}
	chars := got.Characters("owner")
	if len(chars) != 1 || chars[0] != dst.FindMobile(char.Serial()) {
		t.Errorf("characters = %v", chars)
	}
	if _, err := got.Authenticate("owner", "secret"); err != nil {
		t.Errorf("password after load: %v", err)
	}
	if _, err := got.Authenticate("banned", "secret"); !errors.Is(err, ErrBanned) {
		t.Errorf("ban after load: err = %v", err)
	}
}

func TestVersionZeroIsReadable(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	w := world.NewWriter()
	w.WriteEncodedInt(1)
	w.WriteVersion(0)
	w.WriteString("old")
	w.WriteString(string(hash))
	w.WriteUint8(uint8(Seer))
	w.WriteTime(time.Time{})
	w.WriteMobileList(nil)

	tbl := newTable()
	if err := tbl.Deserialize(world.NewReader(w.Bytes(), nil)); err != nil {
		t.Fatal(err)
	}
	a, err := tbl.Authenticate("old", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if a.Banned || a.AccessLevel != Seer {
		t.Errorf("account = %+v", a)
	}
}

func TestFutureVersionIsRejected(t *testing.T) {
	w := world.NewWriter()
	w.WriteEncodedInt(1)
	w.WriteVersion(currentVersion + 1)

	err := newTable().Deserialize(world.NewReader(w.Bytes(), nil))
	var verr *world.VersionError
	if !errors.As(err, &verr) {
		t.Errorf("err = %v, want *world.VersionError", err)
	}
}
