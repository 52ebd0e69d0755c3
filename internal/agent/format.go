package agent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/grupovorp/adpilot/internal/tools"
)

// LLMs emit standard markdown; WhatsApp renders its own dialect. ToWhatsApp
// rewrites the common differences so replies do not arrive full of ## and **.

var (
	headingRe     = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	boldRe        = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)]+)\)`)
	codeFenceRe   = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?(.*?)```")
	inlineCodeRe  = regexp.MustCompile("`([^`]+)`")
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
	bracketGroups = regexp.MustCompile(`\[([^\[\]]+)\]`)
)

func ToWhatsApp(text string) string {
	text = headingRe.ReplaceAllString(text, "*$1*")
	text = boldRe.ReplaceAllString(text, "*$1*")
	text = linkRe.ReplaceAllString(text, "$1 ($2)")
	text = codeFenceRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")

	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// RecoverButtons detects the pattern where the model writes its options as
// trailing bracket groups ("[Sim] [Não]") instead of calling the buttons tool,
// and converts them into a real buttons payload. Returns the text unchanged
// and nil when the pattern does not apply.
func RecoverButtons(text string) (string, *tools.ButtonsPayload) {
	matches := bracketGroups.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 || len(matches) > 3 {
		return text, nil
	}

	first := matches[0]
	last := matches[len(matches)-1]

	// Only trailing bracket groups count; brackets mid-sentence are content.
	// Accented characters count once, so the threshold is in runes.
	if nonSpaceRunes(text[last[1]:]) >= 10 {
		return text, nil
	}
	for i := 1; i < len(matches); i++ {
		between := text[matches[i-1][1]:matches[i][0]]
		if strings.TrimSpace(between) != "" {
			return text, nil
		}
	}

	var buttons []tools.Button
	for i, m := range matches {
		label := strings.TrimSpace(text[m[2]:m[3]])
		if label == "" || utf8.RuneCountInString(label) > 50 {
			return text, nil
		}
		buttons = append(buttons, tools.Button{
			ID:    fmt.Sprintf("%d", i+1),
			Title: tools.TruncateTitle(label, 20),
		})
	}

	body := strings.TrimSpace(text[:first[0]])
	if body == "" {
		return text, nil
	}

	return body, &tools.ButtonsPayload{Body: body, Buttons: buttons}
}

func nonSpaceRunes(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
