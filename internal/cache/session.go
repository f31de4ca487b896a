// Package cache keeps per-browser sessions in memory. Account credentials
// live only here and are never written to disk or to the archive.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"

	"github.com/ashmitsharp/tradebook/internal/calculator"
	"github.com/ashmitsharp/tradebook/internal/exchanges"
	"github.com/ashmitsharp/tradebook/internal/models"
)

var (
	ErrDuplicateAccount = errors.New("account name already registered")
	// ErrNotStored means the cache kept dropping a session write.
	ErrNotStored        = errors.New("session could not be stored")
)

// storeAttempts bounds retries of a dropped session write.
const storeAttempts = 3

// Store holds sessions with a sliding TTL.
type Store struct {
	c   *ristretto.Cache
	set func(key, value interface{}, cost int64, ttl time.Duration) bool
	ttl time.Duration
}

// Stats is a snapshot of the underlying cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
	HitRatio    float64
}

func New(maxCost int64, ttl time.Duration) (*Store, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e5,
		MaxCost:            maxCost,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c, set: c.SetWithTTL, ttl: ttl}, nil
}

// Create starts a new empty session.
func (s *Store) Create() (*Session, error) {
	sess := &Session{ID: uuid.NewString()}
	if err := s.Touch(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session for id, refreshing its TTL.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := s.c.Get(id)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*Session)
	if !ok {
		return nil, false
	}
	// On failure the entry keeps its previous expiry.
	_ = s.Touch(sess)
	return sess, true
}

// Touch stores sess and restarts its TTL. The write is visible to Get on
// return. ristretto drops new keys when its write buffer is full, so a
// dropped write is retried after the buffer drains.
func (s *Store) Touch(sess *Session) error {
	for i := 0; i < storeAttempts; i++ {
		ok := s.set(sess.ID, sess, 1, s.ttl)
		s.c.Wait()
		if ok {
			return nil
		}
	}
	return ErrNotStored
}

func (s *Store) Delete(id string) { s.c.Del(id) }

func (s *Store) Stats() Stats {
	m := s.c.Metrics
	if m == nil {
		return Stats{}
	}
	return Stats{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
		HitRatio:    m.Ratio(),
	}
}

func (s *Store) Close() { s.c.Close() }

// Session is one user's registered accounts and last query state.
type Session struct {
	ID string

	mu       sync.RWMutex
	accounts []exchanges.Account
	symbol   string
	trades   []models.Trade
	analysis *calculator.TradeAnalysis
	selected []models.Trade
}

// AddAccount registers acct. Names are unique within a session.
func (s *Session) AddAccount(acct exchanges.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Name == acct.Name {
			return ErrDuplicateAccount
		}
	}
	s.accounts = append(s.accounts, acct)
	return nil
}

// RemoveAccount drops the named account and reports whether it existed.
func (s *Session) RemoveAccount(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, acct := range s.accounts {
		if acct.Name == name {
			s.accounts = append(s.accounts[:i:i], s.accounts[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAccounts removes every account along with cached trades and analysis.
func (s *Session) ClearAccounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = nil
	s.symbol = ""
	s.trades = nil
	s.analysis = nil
	s.selected = nil
}

// Accounts returns a copy of the registered accounts.
func (s *Session) Accounts() []exchanges.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]exchanges.Account(nil), s.accounts...)
}

// AccountInfos lists the registered accounts without secrets.
func (s *Session) AccountInfos() []models.AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AccountInfo, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct.Info())
	}
	return out
}

// SetQueryResult replaces the last merged trades and invalidates any analysis
// built on the previous result.
func (s *Session) SetQueryResult(symbol string, trades []models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbol = symbol
	s.trades = trades
	s.analysis = nil
	s.selected = nil
}

func (s *Session) QueryResult() (string, []models.Trade) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.symbol, s.trades
}

func (s *Session) SetAnalysis(analysis *calculator.TradeAnalysis, selected []models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = analysis
	s.selected = selected
}

// Analysis returns the last analysis, the trades it covered and the symbol.
func (s *Session) Analysis() (*calculator.TradeAnalysis, []models.Trade, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysis, s.selected, s.symbol
}
