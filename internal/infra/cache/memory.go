package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tg-word-replacer/internal/domain"
)

// MemoryLocker - аренды в памяти процесса, когда Redis не настроен.
type MemoryLocker struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]memoryEntry
}

type memoryEntry struct {
	owner   string
	expires time.Time
}

// NewMemory создаёт locker в памяти.
func NewMemory() *MemoryLocker {
	return &MemoryLocker{now: time.Now, leases: make(map[string]memoryEntry)}
}

// Acquire занимает ключ, если он свободен или аренда истекла.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (domain.Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if entry, ok := l.leases[key]; ok && now.Before(entry.expires) {
		return nil, false, nil
	}
	owner := uuid.NewString()
	l.leases[key] = memoryEntry{owner: owner, expires: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, owner: owner, ttl: ttl}, true, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	owner  string
	ttl    time.Duration
}

func (l *memoryLease) Refresh(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	entry, ok := l.locker.leases[l.key]
	if !ok || entry.owner != l.owner {
		return ErrLeaseLost
	}
	entry.expires = l.locker.now().Add(l.ttl)
	l.locker.leases[l.key] = entry
	return nil
}

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if entry, ok := l.locker.leases[l.key]; ok && entry.owner == l.owner {
		delete(l.locker.leases, l.key)
	}
	return nil
}
