package textutil

// CosineSimilarity measures topical overlap between two fingerprints in
// [0,1]. Length-normalized, so a short quote against a long passage scores
// by shared vocabulary, not by size. Returns 0 when either side is nil or
// empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Containment reports the fraction of needle's token mass present in
// haystack, in [0,1]. A quote lifted verbatim from the haystack scores 1
// regardless of how much longer the haystack is; use this instead of
// CosineSimilarity when asking "does this text appear in that one" rather
// than "are these two texts alike".
func Containment(needle, haystack *Fingerprint) float64 {
	if needle == nil || haystack == nil || needle.mass == 0 {
		return 0
	}
	var shared float64
	for token, count := range needle.tokens {
		if other, ok := haystack.tokens[token]; ok {
			if other < count {
				shared += other
			} else {
				shared += count
			}
		}
	}
	return shared / needle.mass
}
