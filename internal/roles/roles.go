package roles

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrUnauthorized      = errors.New("unauthorized")
)

// MasterSet is an ordered list of identities allowed to append leptons.
// Removal swaps the last entry into the freed slot, so iteration order
// changes on removal.
type MasterSet struct {
	ids []string
}

func NewMasterSet(ids ...string) *MasterSet {
	m := &MasterSet{}
	for _, id := range ids {
		_ = m.Add(id)
	}
	return m
}

func (m *MasterSet) Add(id string) error {
	if id == "" || m.index(id) >= 0 {
		return ErrInvalidTransition
	}
	m.ids = append(m.ids, id)
	return nil
}

func (m *MasterSet) Remove(id string) error {
	i := m.index(id)
	if i < 0 {
		return ErrInvalidTransition
	}
	last := len(m.ids) - 1
	m.ids[i] = m.ids[last]
	m.ids = m.ids[:last]
	return nil
}

func (m *MasterSet) Contains(id string) bool { return m.index(id) >= 0 }

func (m *MasterSet) List() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

func (m *MasterSet) Len() int { return len(m.ids) }

func (m *MasterSet) Clone() *MasterSet {
	return &MasterSet{ids: m.List()}
}

func (m *MasterSet) index(id string) int {
	for i, v := range m.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// WalletLog records every value a wallet role has held. Setting the
// current value again is rejected; returning to an older value is not.
type WalletLog struct {
	history []string
}

func NewWalletLog(history ...string) *WalletLog {
	w := &WalletLog{}
	w.history = append(w.history, history...)
	return w
}

func (w *WalletLog) Set(id string) error {
	if id == "" || id == w.Current() {
		return ErrInvalidTransition
	}
	w.history = append(w.history, id)
	return nil
}

// Current is empty until the wallet has been configured.
func (w *WalletLog) Current() string {
	if len(w.history) == 0 {
		return ""
	}
	return w.history[len(w.history)-1]
}

func (w *WalletLog) History() []string {
	out := make([]string, len(w.history))
	copy(out, w.history)
	return out
}

func (w *WalletLog) Clone() *WalletLog {
	return &WalletLog{history: w.History()}
}
