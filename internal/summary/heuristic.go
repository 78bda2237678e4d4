package summary

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultRecentCount     = 5
	defaultActionItemLimit = 3
	defaultExcerptRunes    = 120

	timestampLayout = "2006-01-02 15:04"
	emptyNarrative  = "No messages in the selected period."
	emptyBody       = "(no text)"
)

// Stats describes a message window
type Stats struct {
	MessageCount    int        `json:"message_count"`
	Participants    []string   `json:"participants"`
	Rooms           []string   `json:"rooms"`
	FirstAt         *time.Time `json:"first_at,omitempty"`
	LastAt          *time.Time `json:"last_at,omitempty"`
	ActionItemCount int        `json:"action_item_count"`
}

// Digest is a heuristic summary
type Digest struct {
	Content string
	Stats   Stats
}

// Request and obligation language, matched case-insensitively
var actionMarkers = []string{
	"please", "could you", "can you", "would you", "need to", "needs to",
	"must", "deadline", "due by", "due date", "asap", "by tomorrow",
	"follow up", "follow-up", "todo", "to do", "action item", "remind",
	"お願い", "ください", "下さい", "確認", "対応", "期限", "締切", "締め切り",
	"までに", "至急", "ご検討", "ご連絡", "送付",
}

// Chatwork message markup that carries no text of its own
var chatworkMarkup = regexp.MustCompile(`(?i)\[(?:/?(?:info|title|qt|code)|qtmeta[^\]]*|to:\d+|toall|rp\s[^\]]*|reply[^\]]*|hr|picon(?:name)?:\d+|dtext:[^\]]*|preview[^\]]*|download:\d+)\]`)

// HeuristicOptions tunes the heuristic summarizer
type HeuristicOptions struct {
	RecentCount     int
	ActionItemLimit int
	ExcerptRunes    int
	// Location formats timestamps; nil means UTC
	Location *time.Location
}

// Heuristic derives a narrative from a window without any external call.
// Output depends only on the input window.
type Heuristic struct {
	opts HeuristicOptions
}

// NewHeuristic creates a heuristic summarizer
func NewHeuristic(opts HeuristicOptions) *Heuristic {
	if opts.RecentCount <= 0 {
		opts.RecentCount = defaultRecentCount
	}
	if opts.ActionItemLimit <= 0 {
		opts.ActionItemLimit = defaultActionItemLimit
	}
	if opts.ExcerptRunes <= 0 {
		opts.ExcerptRunes = defaultExcerptRunes
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Heuristic{opts: opts}
}

// Summarize builds the narrative for an oldest-first window
func (h *Heuristic) Summarize(window []Message) Digest {
	if len(window) == 0 {
		return Digest{Content: emptyNarrative, Stats: Stats{Participants: []string{}, Rooms: []string{}}}
	}

	stats := computeStats(window)
	actions := h.actionItems(window)
	stats.ActionItemCount = len(actions)

	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s - %s (%s)\n",
		h.format(*stats.FirstAt), h.format(*stats.LastAt), messageCount(stats.MessageCount))
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(stats.Participants, ", "))
	fmt.Fprintf(&b, "Rooms: %s\n", strings.Join(stats.Rooms, ", "))

	b.WriteString("Recent messages:\n")
	start := len(window) - h.opts.RecentCount
	if start < 0 {
		start = 0
	}
	for _, m := range window[start:] {
		b.WriteString("- " + h.excerpt(m) + "\n")
	}

	if len(actions) == 0 {
		b.WriteString("Possible action items: none detected")
	} else {
		b.WriteString("Possible action items:")
		for _, m := range actions {
			b.WriteString("\n- " + h.excerpt(m))
		}
	}

	return Digest{Content: b.String(), Stats: stats}
}

// actionItems returns up to ActionItemLimit of the most recent messages
// that read like requests, oldest first
func (h *Heuristic) actionItems(window []Message) []Message {
	var found []Message
	for i := len(window) - 1; i >= 0 && len(found) < h.opts.ActionItemLimit; i-- {
		if IsActionItem(window[i].Body) {
			found = append(found, window[i])
		}
	}
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found
}

func (h *Heuristic) excerpt(m Message) string {
	return fmt.Sprintf("%s [%s] %s: %s", h.format(m.SentAt), roomLabel(m.RoomName), m.SenderName,
		Truncate(displayBody(m.Body), h.opts.ExcerptRunes))
}

func messageCount(n int) string {
	if n == 1 {
		return "1 message"
	}
	return fmt.Sprintf("%d messages", n)
}

func (h *Heuristic) format(t time.Time) string {
	return t.In(h.opts.Location).Format(timestampLayout)
}

// IsActionItem reports whether body contains request or obligation language
func IsActionItem(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range actionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// CleanBody strips Chatwork markup and collapses whitespace
func CleanBody(body string) string {
	body = chatworkMarkup.ReplaceAllString(body, " ")
	return strings.Join(strings.Fields(body), " ")
}

// displayBody is CleanBody with a placeholder for bodies that were only markup
func displayBody(body string) string {
	if cleaned := CleanBody(body); cleaned != "" {
		return cleaned
	}
	return emptyBody
}

// Truncate shortens s to at most limit runes, marking the cut with an ellipsis
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

func roomLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "unnamed room"
	}
	return name
}

// computeStats collects participants and rooms in first-occurrence order
func computeStats(window []Message) Stats {
	stats := Stats{
		MessageCount: len(window),
		Participants: []string{},
		Rooms:        []string{},
	}
	if len(window) == 0 {
		return stats
	}

	seenPeople := make(map[string]bool)
	seenRooms := make(map[string]bool)
	for _, m := range window {
		if name := strings.TrimSpace(m.SenderName); name != "" && !seenPeople[name] {
			seenPeople[name] = true
			stats.Participants = append(stats.Participants, name)
		}
		room := roomLabel(m.RoomName)
		if !seenRooms[room] {
			seenRooms[room] = true
			stats.Rooms = append(stats.Rooms, room)
		}
	}

	first := window[0].SentAt
	last := window[len(window)-1].SentAt
	stats.FirstAt = &first
	stats.LastAt = &last
	return stats
}
