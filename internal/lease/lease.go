// Package lease hands out node slots through Redis so that concurrently
// running instances never share a (datacenter, worker) pair.
//
// Each of the 1024 slots is a key "<prefix>:<slot>" holding the owner's
// random token with a TTL. An instance claims the first free slot with
// SET NX, renews it every TTL/3 while it runs, and deletes it on shutdown.
// Renewal and release only touch the key when it still holds our token, so
// an instance that stalled past its TTL cannot extend or delete a slot that
// was meanwhile claimed by someone else.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/nodeid"
)

const (
	DefaultPrefix = "snowflake:node"
	DefaultTTL    = 30 * time.Second
)

var (
	// ErrPoolExhausted is returned when every slot is held.
	ErrPoolExhausted = errors.New("lease: no free node slot")

	// ErrNotHeld is returned by Renew and Release before Acquire succeeded.
	ErrNotHeld = errors.New("lease: no slot held")

	// ErrLost is returned when the slot key expired or changed owner.
	// IDs must not be issued under the pair any more.
	ErrLost = errors.New("lease: slot lost")
)

var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Options configures a Leaser.
type Options struct {
	Prefix string        // key prefix, DefaultPrefix when empty
	TTL    time.Duration // lease lifetime, DefaultTTL when zero

	// Preferred is the first slot tried; the scan wraps around from there.
	// Spreading start points keeps simultaneous starts from racing for slot 0.
	Preferred int64

	Logger *slog.Logger
}

// Leaser owns at most one slot at a time.
type Leaser struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	pref   int64
	token  string
	logger *slog.Logger

	mu   sync.Mutex
	slot int64 // -1 when nothing is held
}

// New creates a Leaser with a fresh owner token.
func New(client redis.Cmdable, opts Options) *Leaser {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Leaser{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		pref:   opts.Preferred & (snowflake.NodeCount - 1),
		token:  uuid.NewString(),
		logger: opts.Logger.With(slog.String("component", "lease")),
		slot:   -1,
	}
}

// Token returns the owner token written into the slot key.
func (l *Leaser) Token() string { return l.token }

// TTL returns the lease lifetime.
func (l *Leaser) TTL() time.Duration { return l.ttl }

func (l *Leaser) key(slot int64) string {
	return l.prefix + ":" + strconv.FormatInt(slot, 10)
}

// Acquire claims the first free slot starting at the preferred one.
// Calling it while a slot is held returns that slot.
func (l *Leaser) Acquire(ctx context.Context) (nodeid.Node, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slot >= 0 {
		return nodeid.FromSlot(l.slot, nodeid.SourceLease), nil
	}

	for i := int64(0); i < snowflake.NodeCount; i++ {
		slot := (l.pref + i) % snowflake.NodeCount

		ok, err := l.client.SetNX(ctx, l.key(slot), l.token, l.ttl).Result()
		if err != nil {
			return nodeid.Node{}, fmt.Errorf("lease: claim slot %d: %w", slot, err)
		}
		if ok {
			l.slot = slot
			n := nodeid.FromSlot(slot, nodeid.SourceLease)
			l.logger.Info("slot acquired",
				slog.Int64("slot", slot),
				slog.Int64("datacenter", n.DatacenterID),
				slog.Int64("worker", n.WorkerID),
				slog.Duration("ttl", l.ttl))
			return n, nil
		}
	}
	return nodeid.Node{}, ErrPoolExhausted
}

// Renew extends the held lease by TTL.
func (l *Leaser) Renew(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slot < 0 {
		return ErrNotHeld
	}
	n, err := renewScript.Run(ctx, l.client, []string{l.key(l.slot)}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("lease: renew slot %d: %w", l.slot, err)
	}
	if n == 0 {
		slot := l.slot
		l.slot = -1
		return fmt.Errorf("%w: slot %d", ErrLost, slot)
	}
	return nil
}

// Run renews the lease every TTL/3 until ctx is done or the lease is lost.
// Transient Redis errors are logged and retried on the next tick; the lease
// survives them as long as one renewal lands within TTL.
func (l *Leaser) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := l.Renew(ctx)
			switch {
			case err == nil:
				l.logger.Debug("slot renewed")
			case errors.Is(err, ErrLost), errors.Is(err, ErrNotHeld):
				l.logger.Error("slot lost", slog.Any("err", err))
				return err
			default:
				l.logger.Warn("slot renewal failed", slog.Any("err", err))
			}
		}
	}
}

// Release deletes the slot key if it is still ours.
func (l *Leaser) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slot < 0 {
		return ErrNotHeld
	}
	slot := l.slot
	l.slot = -1

	n, err := releaseScript.Run(ctx, l.client, []string{l.key(slot)}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("lease: release slot %d: %w", slot, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: slot %d", ErrLost, slot)
	}
	l.logger.Info("slot released", slog.Int64("slot", slot))
	return nil
}

// Active lists the slots currently held by any instance, ascending.
func (l *Leaser) Active(ctx context.Context) ([]int64, error) {
	var slots []int64

	iter := l.client.Scan(ctx, 0, l.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		s, err := strconv.ParseInt(strings.TrimPrefix(iter.Val(), l.prefix+":"), 10, 64)
		if err != nil || s < 0 || s >= snowflake.NodeCount {
			continue
		}
		slots = append(slots, s)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("lease: scan: %w", err)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots, nil
}
