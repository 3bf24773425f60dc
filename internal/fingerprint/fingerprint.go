// Package fingerprint computes content hashes and similarity scores over
// code bodies. All functions are pure and never fail on well-formed input.
//
// Three levels of matching are provided, from strictest to loosest:
//   - Exact: literal before/after content, order-sensitive
//   - Structural: invariant under comments, whitespace, and the
//     punctuation set {}();,
//   - LineSimilarity: fraction of normalized lines shared between two bodies
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// sentinel separates before/after content in the exact fingerprint.
// NUL bytes cannot survive normalized source code, so the concatenation
// is unambiguous and swapping the arguments changes the hash.
const sentinel = "\x00--patchflow--\x00"

var (
	lineCommentRe  = regexp.MustCompile(`//[^\n]*|#[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	punctuationRe  = regexp.MustCompile(`[{}();,]`)
)

// Exact returns a deterministic fingerprint over the literal before/after
// pair. Two proposals share an exact fingerprint only when both sides are
// byte-identical.
func Exact(before, after string) string {
	sum := sha256.Sum256([]byte(before + sentinel + after))
	return hex.EncodeToString(sum[:])
}

// Structural returns a fingerprint that is invariant under comments,
// whitespace runs, and the punctuation set {}();,. The normalization is
// intentionally lossy: two bodies differing only in formatting or
// statement-terminator punctuation collapse to the same fingerprint.
func Structural(code string) string {
	sum := sha256.Sum256([]byte(normalize(code)))
	return hex.EncodeToString(sum[:])
}

// LineSimilarity returns the fraction of normalized non-blank lines of the
// smaller-denominated body found anywhere in the other body:
//
//	|common normalized lines| / max(|linesA|, |linesB|)
//
// Membership is a set test, not positional alignment. Returns 0 when either
// side has no non-blank lines. Range [0, 1].
func LineSimilarity(a, b string) float64 {
	linesA := normalizedLines(a)
	linesB := normalizedLines(b)
	if len(linesA) == 0 || len(linesB) == 0 {
		return 0
	}

	inB := make(map[string]struct{}, len(linesB))
	for _, line := range linesB {
		inB[line] = struct{}{}
	}

	common := 0
	for _, line := range linesA {
		if _, ok := inB[line]; ok {
			common++
		}
	}

	denom := len(linesA)
	if len(linesB) > denom {
		denom = len(linesB)
	}
	return float64(common) / float64(denom)
}

// normalize strips comments, whitespace runs, and the punctuation set,
// collapsing the code to a single comparison string.
func normalize(code string) string {
	s := blockCommentRe.ReplaceAllString(code, "")
	s = lineCommentRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, "")
	s = punctuationRe.ReplaceAllString(s, "")
	return s
}

// normalizedLines splits code into non-blank lines, each trimmed,
// whitespace-collapsed, punctuation-stripped, and lowercased.
func normalizedLines(code string) []string {
	var out []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = whitespaceRe.ReplaceAllString(line, " ")
		line = punctuationRe.ReplaceAllString(line, "")
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
