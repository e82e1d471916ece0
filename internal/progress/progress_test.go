package progress

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitCompletes(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now()

	err := Spinner{Out: &buf, Interval: 10 * time.Millisecond}.Wait(context.Background(), 80*time.Millisecond, "settling")
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Contains(t, buf.String(), "settling")
	assert.True(t, strings.HasSuffix(buf.String(), "\r\033[K"), "line should be cleared")
	assert.Greater(t, strings.Count(buf.String(), "\r"), 2)
}

func TestWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Wait(ctx, nil, 10*time.Second, "settling")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitZeroDuration(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Wait(context.Background(), &buf, 0, "x"))
	assert.Empty(t, buf.String())
}
