// Package transcript turns word-level speech-to-text output into
// speaker-attributed sentences, for example to feed meeting recordings into
// an expert conversation.
package transcript

import (
	"strconv"
	"strings"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

// Segment is one sentence, or sentence fragment, spoken by one speaker.
type Segment struct {
	Speaker int     `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Diarize groups words into segments. A segment ends when the speaker
// changes or after a word whose punctuated form ends a sentence. A trailing
// fragment without terminal punctuation becomes its own segment.
func Diarize(words []stt.Word) []Segment {
	var (
		out     []Segment
		current []string
		seg     Segment
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		seg.Text = strings.Join(current, " ")
		out = append(out, seg)
		current = current[:0]
	}

	for i, w := range words {
		if len(current) > 0 && w.Speaker != seg.Speaker {
			flush()
		}
		if len(current) == 0 {
			seg = Segment{Speaker: w.Speaker, Start: w.Start}
		}
		text := w.Punctuated
		if text == "" {
			text = w.Text
		}
		current = append(current, text)
		seg.End = w.End

		if endsSentence(text) || i == len(words)-1 {
			flush()
		}
	}
	return out
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "?") || strings.HasSuffix(word, "!")
}

// Format renders one "Speaker {n}: {sentence}" line per segment.
func Format(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString("Speaker ")
		b.WriteString(strconv.Itoa(s.Speaker))
		b.WriteString(": ")
		b.WriteString(s.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Speakers returns the number of distinct speakers in segments.
func Speakers(segments []Segment) int {
	seen := make(map[int]struct{})
	for _, s := range segments {
		seen[s.Speaker] = struct{}{}
	}
	return len(seen)
}
