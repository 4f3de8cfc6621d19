package reconcile

import (
	"sort"
	"strings"
)

// Ratio is the indel similarity of two strings on a 0-100 scale, measured
// in runes: twice the longest common subsequence over the combined length.
// Empty input scores 0.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 100 * float64(2*commonSubsequence(ra, rb)) / float64(len(ra)+len(rb))
}

// commonSubsequence is the length of the longest common subsequence of a
// and b.
func commonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// TokenSetRatio compares the whitespace token sets of a and b. The shared
// tokens are compared against each side's full sorted token list, so a
// string whose tokens are a subset of the other's scores 100.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var shared, onlyA, onlyB []string
	for tok := range ta {
		if tb[tok] {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	return max(
		Ratio(sect, combinedA),
		Ratio(sect, combinedB),
		Ratio(combinedA, combinedB),
	)
}

// PartialRatio is the best Ratio of the shorter string against every
// equally long window of the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	short, long := ra, rb
	if len(ra) > len(rb) {
		short, long = rb, ra
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}

	needle := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := Ratio(needle, string(long[i:i+len(short)]))
		if r > 99.5 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
