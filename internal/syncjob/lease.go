package syncjob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func LeaseKey(storeID int64, syncType string) string {
	return fmt.Sprintf("lock:sync:%d:%s", storeID, syncType)
}

// Lease is a held (store, type) job lock. The token makes release and
// renewal safe against a lease that expired and was taken by someone else.
type Lease struct {
	locker Locker
	key    string
	token  string
	ttl    time.Duration
}

func AcquireLease(ctx context.Context, locker Locker, storeID int64, syncType string, ttl time.Duration) (*Lease, bool, error) {
	l := &Lease{locker: locker, key: LeaseKey(storeID, syncType), token: uuid.NewString(), ttl: ttl}
	ok, err := locker.AcquireLock(ctx, l.key, l.token, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return l, true, nil
}

func (l *Lease) Key() string { return l.key }

func (l *Lease) TTL() time.Duration { return l.ttl }

// Extend renews the lease. It returns false if the lease was lost.
func (l *Lease) Extend(ctx context.Context) (bool, error) {
	return l.locker.ExtendLock(ctx, l.key, l.token, l.ttl)
}

func (l *Lease) Release(ctx context.Context) error {
	return l.locker.ReleaseLock(ctx, l.key, l.token)
}
