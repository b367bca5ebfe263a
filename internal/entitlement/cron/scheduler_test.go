package cronjob

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct{ n atomic.Int32 }

func (c *countingRefresher) RefreshAll(context.Context) { c.n.Add(1) }

func TestScheduler_RunsSweep(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler("* * * * * *", time.UTC, r)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.n.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler("not a spec", nil, &countingRefresher{})
	assert.Error(t, s.Start())
}
