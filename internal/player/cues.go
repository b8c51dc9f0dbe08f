package player

import (
	"html"
	"regexp"
	"strings"

	"github.com/mikey-austin/media_session/pkg/msp"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// textCues turns one subtitle sample into cues, one per non-empty line with
// pango markup removed. Blank samples clear the displayed cues.
func textCues(text string, presentationTimeUS int64) ([]msp.Cue, int64) {
	if presentationTimeUS < 0 {
		presentationTimeUS = 0
	}
	cues := []msp.Cue{}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(html.UnescapeString(markupTag.ReplaceAllString(line, "")))
		if line == "" {
			continue
		}
		cues = append(cues, msp.Cue{Text: line})
	}
	return cues, presentationTimeUS
}
