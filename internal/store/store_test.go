package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qianshe/snowflake"
)

func openTestStore(t *testing.T, ids IDSource) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", ids)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newGen(t *testing.T) *snowflake.Generator {
	t.Helper()
	gen, err := snowflake.New(3, 1)
	require.NoError(t, err)
	return gen
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, newGen(t))
	require.NoError(t, s.Ping(ctx))

	p, err := s.Create(ctx, "hello", "first post")
	require.NoError(t, err)
	assert.Positive(t, int64(p.ID))
	assert.EqualValues(t, 3, p.ID.Worker())
	assert.EqualValues(t, 1, p.ID.Datacenter())

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestCreateValidation(t *testing.T) {
	s := openTestStore(t, newGen(t))
	_, err := s.Create(context.Background(), "", "body")
	assert.ErrorIs(t, err, ErrInvalidPost)
	_, err = s.CreateWithID(context.Background(), 1, "title", "")
	assert.ErrorIs(t, err, ErrInvalidPost)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t, newGen(t))
	_, err := s.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, newGen(t))

	var created []snowflake.ID
	for i := 0; i < 5; i++ {
		p, err := s.Create(ctx, "post", "body")
		require.NoError(t, err)
		created = append(created, p.ID)
	}

	posts, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, created[4], posts[0].ID)
	assert.Equal(t, created[3], posts[1].ID)
	assert.Equal(t, created[2], posts[2].ID)

	next, err := s.ListBefore(ctx, posts[2].ID, 10)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, created[1], next[0].ID)
	assert.Equal(t, created[0], next[1].ID)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestDuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, newGen(t))

	_, err := s.CreateWithID(ctx, 42, "a", "b")
	require.NoError(t, err)

	_, err = s.CreateWithID(ctx, 42, "c", "d")
	assert.ErrorIs(t, err, ErrDuplicateID)
}

type failingIDs struct{ err error }

func (f failingIDs) NextIDWithContext(context.Context) (snowflake.ID, error) { return 0, f.err }

func TestCreateMintError(t *testing.T) {
	s := openTestStore(t, failingIDs{err: snowflake.ErrSpinTimeout})

	_, err := s.Create(context.Background(), "t", "b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, snowflake.ErrSpinTimeout))
}
