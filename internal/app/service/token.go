package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// ErrTokenSpace is returned when no unseen token was found within the attempt budget.
var ErrTokenSpace = errors.New("no fresh link token available")

const (
	tokenBytes         = 12
	tokenAttempts      = 8
	defaultTokenCount  = 1_000_000
	tokenFalsePositive = 0.001
)

// TokenGenerator hands out random link tokens and remembers them in a bloom filter, so a token is
// never issued twice by one process. A false positive only costs another attempt.
type TokenGenerator struct {
	mu     sync.Mutex
	issued *bloom.BloomFilter
	read   func([]byte) (int, error)
}

// NewTokenGenerator sizes the filter for the expected number of tokens.
func NewTokenGenerator(expected uint) *TokenGenerator {
	if expected == 0 {
		expected = defaultTokenCount
	}
	return &TokenGenerator{
		issued: bloom.NewWithEstimates(expected, tokenFalsePositive),
		read:   rand.Read,
	}
}

// Seen marks an existing token as issued.
func (g *TokenGenerator) Seen(token string) {
	g.mu.Lock()
	g.issued.AddString(token)
	g.mu.Unlock()
}

// Next returns a URL-safe token that was not issued before.
func (g *TokenGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	buf := make([]byte, tokenBytes)
	for i := 0; i < tokenAttempts; i++ {
		if _, err := g.read(buf); err != nil {
			return "", err
		}
		token := base64.RawURLEncoding.EncodeToString(buf)
		if !g.issued.TestAndAddString(token) {
			return token, nil
		}
	}
	return "", ErrTokenSpace
}
