package credentials

import (
	"errors"
	"fmt"

	"labelscan/internal/config"
)

// ErrExhausted is returned by Advance when every configured pair has been
// consumed. The pool never wraps around within a run.
var ErrExhausted = errors.New("credential pool exhausted")

// Pair is one immutable UPS client key/secret pair.
type Pair struct {
	Label        string
	ClientID     string
	ClientSecret string
}

// Manager owns the ordered credential pool and the active index. The index
// only moves forward; a pair that failed is never reused within a run.
//
// Manager is not safe for concurrent use. The scan loop is sequential, so
// the single control goroutine is the only caller.
type Manager struct {
	pairs  []Pair
	active int
}

// NewManager builds a manager from configuration. Configuration validation
// already guarantees a non-empty pool, but the manager checks again so it
// can be constructed independently in tests.
func NewManager(creds []config.Credential) (*Manager, error) {
	if len(creds) == 0 {
		return nil, config.ErrNoCredentials
	}
	pairs := make([]Pair, 0, len(creds))
	for _, c := range creds {
		pairs = append(pairs, Pair{
			Label:        c.Label,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
		})
	}
	return &Manager{pairs: pairs}, nil
}

// Current returns the active pair.
func (m *Manager) Current() Pair {
	return m.pairs[m.active]
}

// Advance moves to the next pair. It returns ErrExhausted at the last pair.
func (m *Manager) Advance() error {
	if m.active >= len(m.pairs)-1 {
		return fmt.Errorf("%w: all %d pair(s) consumed", ErrExhausted, len(m.pairs))
	}
	m.active++
	return nil
}

// Label returns the active pair's name for logging.
func (m *Manager) Label() string {
	return m.pairs[m.active].Label
}

// Position reports the 1-based active index and the pool size.
func (m *Manager) Position() (int, int) {
	return m.active + 1, len(m.pairs)
}
