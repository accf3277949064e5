// Package accounts keeps login accounts and the characters they own. The
// table is saved with the world as a persistence participant, so character
// links are plain entity references.
package accounts

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/runeshard/server/internal/world"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
)

// AccessLevel orders staff privileges.
type AccessLevel uint8

const (
	Player AccessLevel = iota
	Counselor
	GameMaster
	Seer
	Administrator
	Owner
)

var accessNames = [...]string{"Player", "Counselor", "GameMaster", "Seer", "Administrator", "Owner"}

func (a AccessLevel) String() string {
	if int(a) < len(accessNames) {
		return accessNames[a]
	}
	return fmt.Sprintf("AccessLevel(%d)", uint8(a))
}

const (
	// MaxCharacters is the per-account character limit.
	MaxCharacters = 7

	maxUsernameLen = 32
	minPasswordLen = 4
)

var (
	ErrExists           = errors.New("accounts: account already exists")
	ErrNotFound         = errors.New("accounts: no such account")
	ErrBadPassword      = errors.New("accounts: wrong password")
	ErrBanned           = errors.New("accounts: account is banned")
	ErrInvalidName      = errors.New("accounts: invalid username")
	ErrWeakPassword     = errors.New("accounts: password too short")
	ErrCharactersFull   = errors.New("accounts: no free character slot")
	ErrCharacterClaimed = errors.New("accounts: character belongs to another account")
)

type Account struct {
	Username     string
	PasswordHash string
	AccessLevel  AccessLevel
	Created      time.Time
	Banned       bool
	Characters   []world.Mobile
}

// Table holds every account keyed by its case-folded username.
type Table struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	cost     int
	now      func() time.Time
}

func NewTable() *Table {
	return &Table{
		accounts: make(map[string]*Account),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// fold returns the lookup key for name. Callers see names as typed.
func fold(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// validName rejects control characters anywhere in the raw input, including
// a trailing newline that trimming would hide.
func validName(name string) bool {
	if strings.ContainsFunc(name, unicode.IsControl) {
		return false
	}
	name = strings.TrimSpace(name)
	return name != "" && len(name) <= maxUsernameLen
}

// Create adds an account with a bcrypt hash of password.
func (t *Table) Create(username, password string, level AccessLevel) (*Account, error) {
	if !validName(username) {
		return nil, ErrInvalidName
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), t.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	key := fold(username)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.accounts[key]; ok {
		return nil, ErrExists
	}
	acct := &Account{
		Username:     strings.TrimSpace(username),
		PasswordHash: string(hash),
		AccessLevel:  level,
		Created:      t.now().UTC(),
	}
	t.accounts[key] = acct
	return acct, nil
}

// Get looks an account up ignoring case.
func (t *Table) Get(username string) (*Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.accounts[fold(username)]
	return a, ok
}

// Authenticate returns the account when password matches and it is not
// banned.
func (t *Table) Authenticate(username, password string) (*Account, error) {
	a, ok := t.Get(username)
	if !ok {
		return nil, ErrNotFound
	}
	t.mu.RLock()
	hash, banned := a.PasswordHash, a.Banned
	t.mu.RUnlock()
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrBadPassword
	}
	if banned {
		return nil, ErrBanned
	}
	return a, nil
}

func (t *Table) SetBanned(username string, banned bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.accounts[fold(username)]
	if !ok {
		return ErrNotFound
	}
	a.Banned = banned
	return nil
}

// AddCharacter links m to the account. Deleted characters are pruned first.
func (t *Table) AddCharacter(username string, m world.Mobile) error {
	if m == nil || m.Deleted() {
		return world.ErrDeleted
	}
	key := fold(username)
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.accounts[key]
	if !ok {
		return ErrNotFound
	}
	for k, other := range t.accounts {
		if k != key && slices.Contains(other.Characters, m) {
			return ErrCharacterClaimed
		}
	}
	a.Characters = live(a.Characters)
	if slices.Contains(a.Characters, m) {
		return nil
	}
	if len(a.Characters) >= MaxCharacters {
		return ErrCharactersFull
	}
	a.Characters = append(a.Characters, m)
	return nil
}

// Characters returns the account's live characters.
func (t *Table) Characters(username string) []world.Mobile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.accounts[fold(username)]
	if !ok {
		return nil
	}
	return live(a.Characters)
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.accounts)
}

func live(list []world.Mobile) []world.Mobile {
	return slices.DeleteFunc(slices.Clone(list), func(m world.Mobile) bool {
		return m == nil || m.Deleted()
	})
}

// sorted returns the accounts ordered by key so saves are deterministic.
func (t *Table) sorted() []*Account {
	keys := make([]string, 0, len(t.accounts))
	for k := range t.accounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Account, len(keys))
	for i, k := range keys {
		out[i] = t.accounts[k]
	}
	return out
}
