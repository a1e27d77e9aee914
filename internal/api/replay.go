package api

import (
	"crypto/ed25519"
	"sync"
	"time"
)

// signatureCache remembers accepted signatures until their timestamp leaves
// the signature window. A signature is accepted at most once.
type signatureCache struct {
	mu        sync.Mutex
	seen      map[[ed25519.SignatureSize]byte]time.Time
	nextSweep time.Time
	window    time.Duration
}

func newSignatureCache(window time.Duration) *signatureCache {
	return &signatureCache{
		seen:   make(map[[ed25519.SignatureSize]byte]time.Time),
		window: window,
	}
}

// claim records sig as used until expires. It reports false when sig was
// already claimed and has not expired.
func (c *signatureCache) claim(sig []byte, expires, now time.Time) bool {
	var k [ed25519.SignatureSize]byte
	copy(k[:], sig)

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.After(c.nextSweep) {
		for key, exp := range c.seen {
			if now.After(exp) {
				delete(c.seen, key)
			}
		}
		c.nextSweep = now.Add(c.window)
	}

	if exp, ok := c.seen[k]; ok && !now.After(exp) {
		return false
	}
	c.seen[k] = expires
	return true
}

func (c *signatureCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
