package callback

import (
	"sync"
	"time"
)

// ledger remembers resolved callbacks for a while, so that the same address
// visited again gets the same answer without calling the auth API.
type ledger struct {
	expiry time.Duration
	mu     sync.Mutex
	items  map[string]*expiringResult
}

type expiringResult struct {
	createdAt time.Time
	value     Result
}

func newLedger(expiry time.Duration) *ledger {
	return &ledger{
		expiry: expiry,
		items:  map[string]*expiringResult{},
	}
}

func (l *ledger) Set(key string, value Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, item := range l.items {
		if now.Sub(item.createdAt) > l.expiry {
			delete(l.items, k)
		}
	}

	l.items[key] = &expiringResult{createdAt: now, value: value}
}

func (l *ledger) Get(key string) (value Result, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[key]
	if !ok {
		return Result{}, false
	}

	if time.Since(item.createdAt) > l.expiry {
		delete(l.items, key)
		return Result{}, false
	}

	return item.value, true
}
