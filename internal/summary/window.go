package summary

import (
	"sort"
	"time"

	"github.com/chatcrm/crm-backend/internal/config"
	"github.com/chatcrm/crm-backend/internal/models"
)

// Message is the view of a chat message the summarizers work on
type Message struct {
	RoomName   string
	SenderName string
	SentAt     time.Time
	Body       string
}

// FromRoomMessages converts stored messages into summary input
func FromRoomMessages(rows []models.RoomMessage) []Message {
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{
			RoomName:   r.RoomName,
			SenderName: r.SenderName,
			SentAt:     r.SentAt,
			Body:       r.BodyText,
		})
	}
	return out
}

// WindowOptions bounds the selected window. Zero values mean the defaults
// (30 days, 120 messages); a negative LookbackDays disables the cutoff.
type WindowOptions struct {
	LookbackDays int
	MaxCount     int
}

func (o WindowOptions) withDefaults() WindowOptions {
	if o.LookbackDays == 0 {
		o.LookbackDays = config.DefaultLookbackDays
	}
	if o.MaxCount <= 0 {
		o.MaxCount = config.DefaultMaxMessages
	}
	return o
}

// Cutoff returns the oldest instant the window keeps, or the zero time when
// the lookback is disabled
func (o WindowOptions) Cutoff(now time.Time) time.Time {
	o = o.withDefaults()
	if o.LookbackDays < 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(o.LookbackDays) * 24 * time.Hour)
}

// SelectWindow returns at most MaxCount of the most recent messages sent
// within the lookback period, oldest first. Messages without a valid
// timestamp are dropped. An empty result means no activity.
func SelectWindow(messages []Message, opts WindowOptions, now time.Time) []Message {
	opts = opts.withDefaults()
	cutoff := opts.Cutoff(now)

	window := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.SentAt.IsZero() {
			continue
		}
		if !cutoff.IsZero() && m.SentAt.Before(cutoff) {
			continue
		}
		window = append(window, m)
	}

	sort.SliceStable(window, func(i, j int) bool {
		return window[i].SentAt.After(window[j].SentAt)
	})
	if len(window) > opts.MaxCount {
		window = window[:opts.MaxCount]
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].SentAt.Before(window[j].SentAt)
	})

	return window
}
