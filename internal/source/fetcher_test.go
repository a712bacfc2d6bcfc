package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCSV = "DEV,FN,SN,PN\nOLT1,1,2,3\nOLT2,1,2,4\n"

func newCSVServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_OK(t *testing.T) {
	srv := newCSVServer(t, http.StatusOK, sampleCSV, nil)
	f := NewFetcher(zap.NewNop())

	tbl := f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"DEV", "FN", "SN", "PN"}, tbl.Columns)
}

func TestFetch_StatusErrorYieldsEmptyTable(t *testing.T) {
	srv := newCSVServer(t, http.StatusInternalServerError, sampleCSV, nil)
	f := NewFetcher(zap.NewNop())

	tbl := f.Fetch(context.Background(), srv.URL)
	assert.True(t, tbl.Empty())
	assert.Empty(t, tbl.Columns)
}

func TestFetch_UnreachableYieldsEmptyTable(t *testing.T) {
	srv := newCSVServer(t, http.StatusOK, sampleCSV, nil)
	url := srv.URL
	srv.Close()

	f := NewFetcher(zap.NewNop())
	assert.True(t, f.Fetch(context.Background(), url).Empty())
}

func TestFetch_EmptyBodyYieldsEmptyTable(t *testing.T) {
	srv := newCSVServer(t, http.StatusOK, "", nil)
	f := NewFetcher(zap.NewNop())
	assert.True(t, f.Fetch(context.Background(), srv.URL).Empty())
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(zap.NewNop(), Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	tbl := f.Fetch(context.Background(), srv.URL)
	assert.True(t, tbl.Empty())
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetch_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	var hits int32
	srv := newCSVServer(t, http.StatusOK, sampleCSV, &hits)
	f := NewFetcher(zap.NewNop(), Config{Cache: cache, CacheTTL: time.Minute})

	first := f.Fetch(context.Background(), srv.URL)
	second := f.Fetch(context.Background(), srv.URL)

	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second fetch should be served from cache")
	assert.True(t, mr.Exists(cacheKey(srv.URL)))

	mr.FastForward(2 * time.Minute)
	f.Fetch(context.Background(), srv.URL)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "expired entry should refetch")
}

func TestFetch_FailedResponseNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	srv := newCSVServer(t, http.StatusBadGateway, "oops", nil)
	f := NewFetcher(zap.NewNop(), Config{Cache: cache, CacheTTL: time.Minute})

	assert.True(t, f.Fetch(context.Background(), srv.URL).Empty())
	assert.False(t, mr.Exists(cacheKey(srv.URL)))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
