package lease

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qianshe/snowflake/internal/logging"
	"github.com/qianshe/snowflake/internal/nodeid"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newLeaser(client redis.Cmdable, opts Options) *Leaser {
	opts.Logger = logging.Discard()
	return New(client, opts)
}

func TestAcquireDisjoint(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := newLeaser(client, Options{})
	b := newLeaser(client, Options{})

	na, err := a.Acquire(ctx)
	require.NoError(t, err)
	nb, err := b.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, nodeid.SourceLease, na.Source)
	assert.NotEqual(t, na.Slot, nb.Slot)
	assert.NotEqual(t, [2]int64{na.DatacenterID, na.WorkerID}, [2]int64{nb.DatacenterID, nb.WorkerID})

	got, err := mr.Get(DefaultPrefix + ":0")
	require.NoError(t, err)
	assert.Equal(t, a.Token(), got)
	assert.Equal(t, DefaultTTL, mr.TTL(DefaultPrefix+":0"))

	again, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, na, again)
}

func TestAcquirePreferredWraps(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("ids:1023", "someone"))

	l := newLeaser(client, Options{Prefix: "ids", Preferred: 1023})
	n, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n.Slot)
}

func TestAcquireExhausted(t *testing.T) {
	mr, client := newRedis(t)
	for i := 0; i < 1024; i++ {
		require.NoError(t, mr.Set("p:"+strconv.Itoa(i), "taken"))
	}

	_, err := newLeaser(client, Options{Prefix: "p"}).Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestRenew(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := newLeaser(client, Options{TTL: 10 * time.Second})

	assert.ErrorIs(t, l.Renew(ctx), ErrNotHeld)

	_, err := l.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(8 * time.Second)
	require.NoError(t, l.Renew(ctx))
	assert.Equal(t, 10*time.Second, mr.TTL(DefaultPrefix+":0"))

	mr.FastForward(11 * time.Second)
	assert.ErrorIs(t, l.Renew(ctx), ErrLost)
	assert.ErrorIs(t, l.Renew(ctx), ErrNotHeld)
}

func TestRenewStolen(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := newLeaser(client, Options{})

	_, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, mr.Set(DefaultPrefix+":0", "other-owner"))

	assert.ErrorIs(t, l.Renew(ctx), ErrLost)

	got, _ := mr.Get(DefaultPrefix + ":0")
	assert.Equal(t, "other-owner", got)
}

func TestReleaseAndActive(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := newLeaser(client, Options{})
	b := newLeaser(client, Options{Preferred: 40})
	_, err := a.Acquire(ctx)
	require.NoError(t, err)
	_, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, mr.Set(DefaultPrefix+":junk", "x"))

	active, err := a.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 40}, active)

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists(DefaultPrefix+":0"))
	assert.ErrorIs(t, a.Release(ctx), ErrNotHeld)

	active, err = b.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{40}, active)
}

func TestReleaseDoesNotDeleteForeignKey(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := newLeaser(client, Options{})

	_, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, mr.Set(DefaultPrefix+":0", "other-owner"))

	assert.ErrorIs(t, l.Release(ctx), ErrLost)
	assert.True(t, mr.Exists(DefaultPrefix+":0"))
}

func TestRun(t *testing.T) {
	t.Run("Stops on cancel", func(t *testing.T) {
		_, client := newRedis(t)
		l := newLeaser(client, Options{TTL: 30 * time.Millisecond})
		_, err := l.Acquire(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Run(ctx), context.DeadlineExceeded)
	})

	t.Run("Returns when lost", func(t *testing.T) {
		mr, client := newRedis(t)
		l := newLeaser(client, Options{TTL: 30 * time.Millisecond})
		_, err := l.Acquire(context.Background())
		require.NoError(t, err)
		mr.Del(DefaultPrefix + ":0")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.ErrorIs(t, l.Run(ctx), ErrLost)
	})
}
