package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefresher_Disabled(t *testing.T) {
	s, _ := newTestState(&fakeMerger{}, nil, nil)
	r := NewRefresher(s, 0)
	assert.Nil(t, r)
	r.Stop()
}

func TestRefresher_WarmsAndStops(t *testing.T) {
	merger := &fakeMerger{}
	s, _ := newTestState(merger, nil, nil)

	r := NewRefresher(s, time.Hour)
	require.NotNil(t, r)
	require.Eventually(t, func() bool { return s.Current() != nil }, time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()
	assert.Equal(t, int32(1), merger.calls.Load())
}

func TestRefresher_Ticks(t *testing.T) {
	merger := &fakeMerger{}
	s, _ := newTestState(merger, nil, nil)

	r := NewRefresher(s, 20*time.Millisecond)
	defer r.Stop()

	require.Eventually(t, func() bool { return merger.calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}
