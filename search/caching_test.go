package search_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"querygraph/search"
)

type countingSearcher struct {
	calls  atomic.Int64
	result string
	err    error
	delay  time.Duration
}

func (s *countingSearcher) Search(context.Context, string) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

func TestCachingClientServesFromCache(t *testing.T) {
	inner := &countingSearcher{result: "r"}
	c := search.NewCachingClient(inner, time.Minute, 1000)

	for i := 0; i < 3; i++ {
		got, err := c.Search(context.Background(), "q")
		assert.NoError(t, err)
		assert.Equal(t, "r", got)
	}
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachingClientDistinctQueries(t *testing.T) {
	inner := &countingSearcher{result: "r"}
	c := search.NewCachingClient(inner, time.Minute, 1000)

	_, _ = c.Search(context.Background(), "a")
	_, _ = c.Search(context.Background(), "b")
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachingClientExpiry(t *testing.T) {
	inner := &countingSearcher{result: "r"}
	c := search.NewCachingClient(inner, 10*time.Millisecond, 1000)

	_, _ = c.Search(context.Background(), "q")
	time.Sleep(20 * time.Millisecond)
	_, _ = c.Search(context.Background(), "q")
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachingClientDoesNotCacheErrors(t *testing.T) {
	inner := &countingSearcher{err: errors.New("down")}
	c := search.NewCachingClient(inner, time.Minute, 1000)

	_, err := c.Search(context.Background(), "q")
	assert.Error(t, err)

	inner.err = nil
	inner.result = "recovered"
	got, err := c.Search(context.Background(), "q")
	assert.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachingClientDeduplicatesInFlight(t *testing.T) {
	inner := &countingSearcher{result: "r", delay: 20 * time.Millisecond}
	c := search.NewCachingClient(inner, time.Minute, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Search(context.Background(), "q")
			assert.NoError(t, err)
			assert.Equal(t, "r", got)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachingClientHonorsContextWhileWaiting(t *testing.T) {
	inner := &countingSearcher{result: "r"}
	// One query per hour with the burst already spent by the first call.
	c := search.NewCachingClient(inner, time.Minute, 1.0/3600)

	_, err := c.Search(context.Background(), "first")
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())
}
