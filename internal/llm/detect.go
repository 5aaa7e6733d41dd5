package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AdSegment is one advertisement span located in a transcript, in seconds
// from the start of the audio. Snippet carries the ad's opening words as
// quoted by the model, used downstream to reject segments whose quote does
// not actually appear in the claimed window.
type AdSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Snippet    string  `json:"snippet,omitempty"`
}

// Duration returns the segment length in seconds.
func (s AdSegment) Duration() float64 {
	return s.End - s.Start
}

type adDetectionResponse struct {
	Segments []AdSegment `json:"segments"`
}

// DetectAdSegments asks the model to locate advertisement spans in the
// transcript. Segments come back normalized: sorted by start time, zero
// lengths dropped, overlaps merged, confidences clamped to [0,1].
func (c *Client) DetectAdSegments(ctx context.Context, transcript string) ([]AdSegment, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, errors.New("llm detect: transcript required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("llm detect: api key required")
	}

	content, err := c.CompleteJSON(ctx, AdDetectionPrompt, transcript)
	if err != nil {
		return nil, err
	}
	var parsed adDetectionResponse
	if err := DecodeJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("llm detect: parse payload: %w", err)
	}
	return NormalizeSegments(parsed.Segments), nil
}

// NormalizeSegments sanitizes model output into a cut plan: invalid spans
// are dropped, the rest sorted by start and merged where they touch or
// overlap.
func NormalizeSegments(segments []AdSegment) []AdSegment {
	cleaned := make([]AdSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.Start < 0 {
			seg.Start = 0
		}
		if seg.End <= seg.Start {
			continue
		}
		if seg.Confidence < 0 {
			seg.Confidence = 0
		}
		if seg.Confidence > 1 {
			seg.Confidence = 1
		}
		seg.Reason = strings.TrimSpace(seg.Reason)
		seg.Snippet = strings.TrimSpace(seg.Snippet)
		cleaned = append(cleaned, seg)
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Start < cleaned[j].Start })

	merged := cleaned[:0]
	for _, seg := range cleaned {
		if len(merged) == 0 {
			merged = append(merged, seg)
			continue
		}
		last := &merged[len(merged)-1]
		if seg.Start > last.End {
			merged = append(merged, seg)
			continue
		}
		if seg.End > last.End {
			last.End = seg.End
		}
		if seg.Confidence > last.Confidence {
			last.Confidence = seg.Confidence
		}
		if last.Reason == "" {
			last.Reason = seg.Reason
		}
		if last.Snippet == "" {
			last.Snippet = seg.Snippet
		}
	}
	return merged
}
