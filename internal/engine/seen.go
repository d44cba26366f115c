package engine

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// seenTokens remembers which tokens the loop has already evaluated so a
// repeated PairCreated (a second pair for the same token, or a log seen
// twice across polls) does not trigger a second entry within ttl.
type seenTokens struct {
	mu   sync.Mutex
	seen map[common.Address]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func newSeenTokens(ttl time.Duration) *seenTokens {
	return &seenTokens{
		seen: make(map[common.Address]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// mark records token and reports whether it had already been seen inside
// the window. A zero ttl disables the check.
func (s *seenTokens) mark(token common.Address) bool {
	if s.ttl <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.seen[token]; ok && now.Sub(last) < s.ttl {
		return true
	}
	s.seen[token] = now
	return false
}

// forget makes token eligible again immediately.
func (s *seenTokens) forget(token common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, token)
}

// prune drops expired entries.
func (s *seenTokens) prune() {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for tok, ts := range s.seen {
		if now.Sub(ts) >= s.ttl {
			delete(s.seen, tok)
		}
	}
}
