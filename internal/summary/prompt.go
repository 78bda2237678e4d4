package summary

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const systemPrompt = "You summarize business chat history for account managers. " +
	"Answer in the language the messages are written in. Output only bullet lines."

// promptLine renders one message as "timestamp [room] sender: body"
func promptLine(m Message, loc *time.Location) string {
	return fmt.Sprintf("%s [%s] %s: %s", m.SentAt.In(loc).Format(timestampLayout),
		roomLabel(m.RoomName), m.SenderName, displayBody(m.Body))
}

// selectLines keeps the newest lines whose combined size (one newline per
// line) fits in budget characters, returned oldest first. A newest line that
// alone exceeds the budget is truncated rather than dropped.
func selectLines(lines []string, budget int) []string {
	var (
		selected []string
		used     int
	)
	for i := len(lines) - 1; i >= 0; i-- {
		size := utf8.RuneCountInString(lines[i]) + 1
		if used+size > budget {
			if len(selected) == 0 && budget > 1 {
				selected = append(selected, Truncate(lines[i], budget-2))
			}
			break
		}
		used += size
		selected = append(selected, lines[i])
	}

	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected
}

type promptInput struct {
	CompanyName string
	Window      []Message
	Stats       Stats
	MaxChars    int
	Bullets     int
	Location    *time.Location
}

// buildPrompt composes the user prompt for a non-empty window
func buildPrompt(in promptInput) string {
	lines := make([]string, 0, len(in.Window))
	for _, m := range in.Window {
		lines = append(lines, promptLine(m, in.Location))
	}
	selected := selectLines(lines, in.MaxChars)

	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		company = "(unnamed company)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", company)
	fmt.Fprintf(&b, "Period: %s - %s\n",
		in.Stats.FirstAt.In(in.Location).Format(timestampLayout),
		in.Stats.LastAt.In(in.Location).Format(timestampLayout))
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(in.Stats.Participants, ", "))
	fmt.Fprintf(&b, "Rooms: %s\n", strings.Join(in.Stats.Rooms, ", "))
	if len(selected) < len(lines) {
		fmt.Fprintf(&b, "Messages shown: the latest %d of %d\n", len(selected), len(lines))
	}
	b.WriteString("\nInstructions:\n")
	fmt.Fprintf(&b, "- Write exactly %d bullet lines, each starting with \"- \".\n", in.Bullets)
	b.WriteString("- Cite concrete topics, requests, decisions and deadlines from the messages.\n")
	b.WriteString("- Name who asked for what when it is clear.\n")
	b.WriteString("- If there are no open action items, say so explicitly in the last bullet.\n")
	b.WriteString("\nMessages (oldest first):\n")
	b.WriteString(strings.Join(selected, "\n"))

	return b.String()
}

var (
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•・]|\d+[.)])\s+`)
	codeFence    = regexp.MustCompile("^```[a-zA-Z]*$")
)

// NormalizeBullets trims provider output and makes sure every non-empty
// line is a bullet. Lines that already carry a bullet or a number keep it,
// and a leading "...:" preamble line is dropped. An empty result means the
// provider returned nothing usable.
func NormalizeBullets(text string) string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || codeFence.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) > 1 && isPreamble(lines[0]) {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return ""
	}

	for i, line := range lines {
		if !bulletPrefix.MatchString(line) {
			lines[i] = "- " + line
		}
	}
	return strings.Join(lines, "\n")
}

func isPreamble(line string) bool {
	if bulletPrefix.MatchString(line) {
		return false
	}
	return strings.HasSuffix(line, ":") || strings.HasSuffix(line, "：")
}
