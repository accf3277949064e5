package accounts

import (
	"fmt"

	"github.com/runeshard/server/internal/world"
)

const (
	participantName = "Accounts"
	recordType      = "Account"

	// version 1 adds Banned.
	currentVersion = 1
)

func (t *Table) Name() string { return participantName }

func (t *Table) Serialize(w *world.Writer) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := t.sorted()
	w.WriteEncodedInt(len(list))
	for _, a := range list {
		w.WriteVersion(currentVersion)
		w.WriteBool(a.Banned)

		w.WriteString(a.Username)
		w.WriteString(a.PasswordHash)
		w.WriteUint8(uint8(a.AccessLevel))
		w.WriteTime(a.Created)
		w.WriteMobileList(a.Characters)
	}
}

// Deserialize replaces the table contents with the saved accounts.
func (t *Table) Deserialize(r *world.Reader) error {
	n := r.ReadEncodedInt()
	if err := r.Err(); err != nil {
		return err
	}
	if n < 0 || n > r.Remaining() {
		return fmt.Errorf("accounts: count %d exceeds payload", n)
	}

	loaded := make(map[string]*Account, n)
	for range n {
		v, err := r.ReadVersion(recordType, currentVersion)
		if err != nil {
			return err
		}
		a := &Account{}
		if v >= 1 {
			a.Banned = r.ReadBool()
		}
		a.Username = r.ReadString()
		a.PasswordHash = r.ReadString()
		a.AccessLevel = AccessLevel(r.ReadUint8())
		a.Created = r.ReadTime()
		a.Characters = r.ReadMobileList()
		if err := r.Err(); err != nil {
			return err
		}
		key := fold(a.Username)
		if _, dup := loaded[key]; dup {
			return fmt.Errorf("accounts: duplicate account %q", a.Username)
		}
		loaded[key] = a
	}

	t.mu.Lock()
	t.accounts = loaded
	t.mu.Unlock()
	return nil
}
