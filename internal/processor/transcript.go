package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TranscriptSegment is one timed line of speech from the transcriber.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type transcriptFile struct {
	Segments []TranscriptSegment `json:"segments"`
}

// ParseTranscript reads transcriber output. WhisperX-style JSON with a
// segments array is preferred; anything else is treated as plain text with
// no timing information.
func ParseTranscript(data []byte) ([]TranscriptSegment, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("transcript is empty")
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed transcriptFile
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && len(parsed.Segments) > 0 {
			return parsed.Segments, nil
		}
		var bare []TranscriptSegment
		if err := json.Unmarshal([]byte(trimmed), &bare); err == nil && len(bare) > 0 {
			return bare, nil
		}
	}

	return []TranscriptSegment{{Text: trimmed}}, nil
}

// FormatPrompt renders transcript segments as "[start - end] text" lines.
// Segments without timing render as bare text.
func FormatPrompt(segments []TranscriptSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.Start == 0 && seg.End == 0 {
			b.WriteString(text)
		} else {
			fmt.Fprintf(&b, "[%.1f - %.1f] %s", seg.Start, seg.End, text)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
