// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmdqueue

// =============================================================================
// SIMILARITY
// =============================================================================

// SimilarityRatio measures how alike two strings are as 2*M / T, where
// M is the number of characters in matching blocks and T is the total
// length of both strings. 1.0 means identical, 0.0 means nothing in
// common.
//
// Examples:
//   - SimilarityRatio("clear", "clear") == 1.0
//   - SimilarityRatio("claer", "clear") == 0.8
//   - SimilarityRatio("xyz", "clear") == 0.0
func SimilarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

// matchingChars sums the lengths of the matching blocks: the longest
// common substring, then recursively the pieces to its left and right.
func matchingChars(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchingChars(a[:ai], b[:bi]) +
		matchingChars(a[ai+size:], b[bi+size:])
}

// longestMatch finds the longest common substring of a and b.
func longestMatch(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// lengths[j] is the match length ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}

// BestMatch returns the candidate most similar to name, provided the
// ratio clears the threshold.
func BestMatch(name string, candidates []string, threshold float64) (string, bool) {
	best := ""
	bestRatio := 0.0
	for _, c := range candidates {
		if r := SimilarityRatio(name, c); r > bestRatio {
			best = c
			bestRatio = r
		}
	}
	if bestRatio >= threshold && best != "" {
		return best, true
	}
	return "", false
}
