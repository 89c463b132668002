package locks

import (
	"context"
	"sync"
	"time"
)

// LocalLocker grants leases within one process.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{leases: map[string]lease{}, now: time.Now}
}

var localTokens struct {
	sync.Mutex
	next uint64
}

func nextToken() uint64 {
	localTokens.Lock()
	defer localTokens.Unlock()
	localTokens.next++
	return localTokens.next
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return nil, false, nil
	}
	token := nextToken()
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[key]; ok && held.token == token {
			delete(l.leases, key)
		}
	}
	return release, true, nil
}
