// internal/validator/cached_test.go
package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/quote-relay/pkg/logger"
)

type countingValidator struct {
	calls  int
	answer map[string]bool
	err    error
}

func (v *countingValidator) Validate(_ context.Context, symbol string) (bool, error) {
	v.calls++
	if v.err != nil {
		return false, v.err
	}
	return v.answer[symbol], nil
}

func newCached(t *testing.T, next Validator) (*Cached, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCached(next, rdb, CacheConfig{TTL: time.Hour, NegativeTTL: time.Minute}, logger.Nop()), mr
}

func TestCached_MemoizesValid(t *testing.T) {
	next := &countingValidator{answer: map[string]bool{"AAPL": true}}
	c, mr := newCached(t, next)

	for i := 0; i < 3; i++ {
		ok, err := c.Validate(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, next.calls)

	val, err := mr.Get("quote-relay:symbol:AAPL")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
	assert.Equal(t, time.Hour, mr.TTL("quote-relay:symbol:AAPL"))
}

func TestCached_MemoizesInvalidWithShortTTL(t *testing.T) {
	next := &countingValidator{answer: map[string]bool{}}
	c, mr := newCached(t, next)

	ok, err := c.Validate(context.Background(), "INVALIDXYZ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("quote-relay:symbol:INVALIDXYZ"))

	mr.FastForward(2 * time.Minute)
	_, _ = c.Validate(context.Background(), "INVALIDXYZ")
	assert.Equal(t, 2, next.calls, "expired negative entry must be re-checked")
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	next := &countingValidator{err: errors.New("upstream down")}
	c, mr := newCached(t, next)

	_, err := c.Validate(context.Background(), "AAPL")
	require.Error(t, err)
	assert.False(t, mr.Exists("quote-relay:symbol:AAPL"))
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	next := &countingValidator{answer: map[string]bool{"AAPL": true}}
	c, mr := newCached(t, next)
	mr.Close()

	ok, err := c.Validate(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, next.calls)
}

func TestFuncAdapter(t *testing.T) {
	var v Validator = Func(func(_ context.Context, s string) (bool, error) { return s == "AAPL", nil })
	ok, _ := v.Validate(context.Background(), "AAPL")
	assert.True(t, ok)
}
