package summary

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func TestSelectWindowKeepsMostRecentWithinLookback(t *testing.T) {
	// 200 messages spread over 60 days, newest first in the input
	var msgs []Message
	for i := 0; i < 200; i++ {
		msgs = append(msgs, Message{
			SenderName: "Taro",
			SentAt:     now.Add(-time.Duration(i) * 7 * time.Hour),
			Body:       fmt.Sprintf("m%d", i),
		})
	}

	window := SelectWindow(msgs, WindowOptions{LookbackDays: 30, MaxCount: 50}, now)

	require.Len(t, window, 50)
	assert.Equal(t, "m49", window[0].Body)
	assert.Equal(t, "m0", window[49].Body)
	cutoff := now.AddDate(0, 0, -30)
	for i, m := range window {
		assert.False(t, m.SentAt.Before(cutoff))
		if i > 0 {
			assert.True(t, window[i-1].SentAt.Before(m.SentAt), "ascending order")
		}
	}
}

func TestSelectWindowDropsOldAndInvalid(t *testing.T) {
	msgs := []Message{
		{Body: "old", SentAt: now.AddDate(0, 0, -31)},
		{Body: "unparsed"},
		{Body: "fresh", SentAt: now.Add(-time.Hour)},
	}

	window := SelectWindow(msgs, WindowOptions{LookbackDays: 30, MaxCount: 10}, now)
	require.Len(t, window, 1)
	assert.Equal(t, "fresh", window[0].Body)
}

func TestSelectWindowEmpty(t *testing.T) {
	msgs := []Message{{Body: "old", SentAt: now.AddDate(-1, 0, 0)}}
	assert.Empty(t, SelectWindow(msgs, WindowOptions{}, now))
	assert.Empty(t, SelectWindow(nil, WindowOptions{}, now))
}

func TestSelectWindowDefaults(t *testing.T) {
	var msgs []Message
	for i := 0; i < 150; i++ {
		msgs = append(msgs, Message{SentAt: now.Add(-time.Duration(i) * time.Minute)})
	}
	msgs = append(msgs, Message{SentAt: now.AddDate(0, 0, -40)})

	window := SelectWindow(msgs, WindowOptions{}, now)
	assert.Len(t, window, 120)
}

func TestSelectWindowNegativeLookbackDisablesCutoff(t *testing.T) {
	msgs := []Message{
		{Body: "ancient", SentAt: now.AddDate(-5, 0, 0)},
		{Body: "new", SentAt: now},
	}

	window := SelectWindow(msgs, WindowOptions{LookbackDays: -1}, now)
	require.Len(t, window, 2)
	assert.Equal(t, "ancient", window[0].Body)
	assert.True(t, WindowOptions{LookbackDays: -1}.Cutoff(now).IsZero())
}

func TestSelectWindowTiesKeepInputOrder(t *testing.T) {
	at := now.Add(-time.Hour)
	msgs := []Message{
		{Body: "first", SentAt: at},
		{Body: "second", SentAt: at},
		{Body: "third", SentAt: at},
	}

	window := SelectWindow(msgs, WindowOptions{}, now)
	require.Len(t, window, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{window[0].Body, window[1].Body, window[2].Body})
}
