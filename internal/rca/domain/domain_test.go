package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextBackoff(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		retries int
		want    time.Duration
	}{
		{retries: 0, want: 60 * time.Second},
		{retries: 1, want: 120 * time.Second},
		{retries: 2, want: 240 * time.Second},
		{retries: 3, want: 480 * time.Second},
	}
	for _, c := range cases {
		got := NextBackoff(now, c.retries)
		require.Equal(t, now.Add(c.want), got)
	}
}

func TestTruncateMessagePrefix(t *testing.T) {
	short := "hello world"
	require.Equal(t, short, TruncateMessagePrefix(short))

	long := strings.Repeat("a", 400)
	truncated := TruncateMessagePrefix(long)
	require.Len(t, []rune(truncated), 300)
	require.Equal(t, strings.Repeat("a", 300), truncated)
}
