package processor

import (
	"strings"

	"podscrub/internal/llm"
	"podscrub/internal/textutil"
)

// Model timestamps drift against transcript line boundaries, so the window
// read back for verification is padded on both sides.
const verifyWindowPadding = 2.0

// snippetMatchThreshold is the minimum fraction of a reported snippet that
// must appear in the claimed window's text. Below 0.5 the quote and the
// window share less than half their words, which no transcription drift
// explains.
const snippetMatchThreshold = 0.5

// verifySegments cross-checks detected ad spans against the transcript and
// drops claims the transcript cannot support: spans covering no transcribed
// speech at all, and spans whose quoted snippet does not appear in the
// window. Transcripts without timing cannot be checked, so everything is
// kept then. Returns the surviving spans and the number rejected.
func verifySegments(segments []llm.AdSegment, transcript []TranscriptSegment) ([]llm.AdSegment, int) {
	if len(segments) == 0 || !hasTiming(transcript) {
		return segments, 0
	}
	kept := make([]llm.AdSegment, 0, len(segments))
	for _, seg := range segments {
		window := windowText(transcript, seg.Start-verifyWindowPadding, seg.End+verifyWindowPadding)
		if window == "" {
			continue
		}
		if seg.Snippet != "" {
			quote := textutil.NewFingerprint(seg.Snippet)
			if quote != nil && textutil.Containment(quote, textutil.NewFingerprint(window)) < snippetMatchThreshold {
				continue
			}
		}
		kept = append(kept, seg)
	}
	return kept, len(segments) - len(kept)
}

func hasTiming(transcript []TranscriptSegment) bool {
	for _, line := range transcript {
		if line.End > 0 {
			return true
		}
	}
	return false
}

// windowText joins the text of transcript lines overlapping [start, end).
func windowText(transcript []TranscriptSegment, start, end float64) string {
	var b strings.Builder
	for _, line := range transcript {
		if line.End <= start || line.Start >= end {
			continue
		}
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}
