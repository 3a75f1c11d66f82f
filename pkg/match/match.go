// Package match implements approximate string matching with a three phase
// cascade: exact substring, ordered subsequence, then bounded edit distance.
// Scores are deterministic and comparable across phases: an exact substring
// always scores 1.0, a subsequence lands in [0.01, 0.99] and an edit distance
// match in [0.01, 0.59], so a cleaner kind of match never loses to a weaker one.
package match

import (
	"github.com/bastiangx/relist/internal/utils"
)

// Subsequence scoring weights. Each factor is normalized to [0,1] before
// weighting, so the weighted sum stays inside [0,1] as well.
const (
	consecutiveWeight = 0.50
	densityWeight     = 0.25
	positionWeight    = 0.15
	boundaryWeight    = 0.10
)

// Edit distance phase parameters.
const (
	maxEdits            = 2
	editBaseScore       = 0.6
	editDistancePenalty = 0.3
	editBoundaryBonus   = 0.1
	editPositionWeight  = 0.05
)

const (
	minScore     = 0.01
	maxSubseq    = 0.99
	maxEditScore = 0.59
)

// Result represents a successful match: its score and the rune indexes of
// the matched region in the candidate text. For the exact and edit distance
// phases the indexes are a contiguous span; for the subsequence phase they
// are the individual character positions.
type Result struct {
	Score          float64
	MatchedIndexes []int
}

// Match runs the cascade of query against text. Each phase is attempted only
// when the previous one found nothing. Comparison is case folded unless
// caseSensitive is set. Empty query or text never matches.
func Match(query, text string, caseSensitive bool) (Result, bool) {
	if len(query) == 0 || len(text) == 0 {
		return Result{}, false
	}

	q := []rune(query)
	t := []rune(text)

	if res, ok := matchExact(q, t, caseSensitive); ok {
		return res, true
	}
	if res, ok := matchSubsequence(q, t, caseSensitive); ok {
		return res, true
	}
	return matchEditDistance(q, t, caseSensitive)
}

// MatchFields returns the best match of query across several text fields.
// Short-circuits as soon as a field scores 1.0 since nothing can beat it.
func MatchFields(query string, fields []string, caseSensitive bool) (Result, bool) {
	var best Result
	found := false

	for _, field := range fields {
		if field == "" {
			continue
		}
		res, ok := Match(query, field, caseSensitive)
		if !ok {
			continue
		}
		if !found || res.Score > best.Score {
			best = res
			found = true
		}
		if best.Score == 1.0 {
			break
		}
	}

	return best, found
}

// matchExact finds query as a contiguous run inside text. This is the only
// phase that can produce a score of 1.0.
func matchExact(q, t []rune, caseSensitive bool) (Result, bool) {
	if len(q) > len(t) {
		return Result{}, false
	}

	for start := 0; start+len(q) <= len(t); start++ {
		hit := true
		for i, qr := range q {
			if !runeEq(t[start+i], qr, caseSensitive) {
				hit = false
				break
			}
		}
		if !hit {
			continue
		}

		indexes := make([]int, len(q))
		for i := range indexes {
			indexes[i] = start + i
		}
		return Result{Score: 1.0, MatchedIndexes: indexes}, true
	}

	return Result{}, false
}

// matchSubsequence matches every query character in order, not necessarily
// adjacent. A greedy left to right scan picks the earliest position for each
// character, then a backward pass pulls positions right to lengthen
// contiguous runs, which the scoring rewards.
func matchSubsequence(q, t []rune, caseSensitive bool) (Result, bool) {
	pos := make([]int, 0, len(q))
	ti := 0

	for _, qr := range q {
		found := -1
		for ; ti < len(t); ti++ {
			if runeEq(t[ti], qr, caseSensitive) {
				found = ti
				ti++
				break
			}
		}
		if found < 0 {
			return Result{}, false
		}
		pos = append(pos, found)
	}

	// Tighten: each position may slide right up to (but not across) the
	// next chosen one. The last position has nothing to gain by moving.
	for i := len(pos) - 2; i >= 0; i-- {
		for j := pos[i+1] - 1; j > pos[i]; j-- {
			if runeEq(t[j], q[i], caseSensitive) {
				pos[i] = j
				break
			}
		}
	}

	score := clamp(subsequenceScore(q, t, pos), minScore, maxSubseq)
	return Result{Score: score, MatchedIndexes: pos}, true
}

func subsequenceScore(q, t []rune, pos []int) float64 {
	first := pos[0]
	last := pos[len(pos)-1]

	// Fraction of matched characters that sit in a run of two or more.
	inRuns := 0
	runLen := 1
	for i := 1; i < len(pos); i++ {
		if pos[i] == pos[i-1]+1 {
			runLen++
			continue
		}
		if runLen >= 2 {
			inRuns += runLen
		}
		runLen = 1
	}
	if runLen >= 2 {
		inRuns += runLen
	}
	consecutive := float64(inRuns) / float64(len(q))

	density := float64(len(q)) / float64(last-first+1)
	position := 1.0 - float64(first)/float64(len(t))

	boundary := 0.0
	if first == 0 || utils.IsBoundary(t[first-1]) {
		boundary = 1.0
	}

	return consecutiveWeight*consecutive +
		densityWeight*density +
		positionWeight*position +
		boundaryWeight*boundary
}

// matchEditDistance is the typo fallback: slide windows of near-query length
// over the text and keep the window with the smallest Levenshtein distance.
// Matches here describe a region, so the indexes span the winning window.
func matchEditDistance(q, t []rune, caseSensitive bool) (Result, bool) {
	qlen := len(q)

	minWin := qlen - maxEdits
	if half := qlen/2 + 1; half > minWin {
		minWin = half
	}
	maxWin := qlen + maxEdits

	if len(t) < minWin {
		return Result{}, false
	}

	bestDist := maxEdits + 1
	bestStart := -1
	bestLen := 0

	for wl := minWin; wl <= maxWin && wl <= len(t); wl++ {
		for start := 0; start+wl <= len(t); start++ {
			d := levenshtein(q, t[start:start+wl], caseSensitive, bestDist-1)
			if d < bestDist {
				bestDist = d
				bestStart = start
				bestLen = wl
			}
		}
	}

	if bestDist > maxEdits {
		return Result{}, false
	}
	// Guard against nonsense corrections on very short queries.
	if 3*bestDist >= 2*qlen {
		return Result{}, false
	}

	score := editBaseScore - editDistancePenalty*float64(bestDist)/float64(qlen)
	if bestStart == 0 || utils.IsBoundary(t[bestStart-1]) {
		score += editBoundaryBonus
	}
	score += editPositionWeight * (1.0 - float64(bestStart)/float64(len(t)))

	indexes := make([]int, bestLen)
	for i := range indexes {
		indexes[i] = bestStart + i
	}
	return Result{Score: clamp(score, minScore, maxEditScore), MatchedIndexes: indexes}, true
}

// levenshtein computes edit distance with a single row buffer, giving up
// early once no cell can come back under bound. Returns bound+1 on abort so
// callers can compare without branching.
func levenshtein(a, b []rune, caseSensitive bool, bound int) int {
	la, lb := len(a), len(b)
	if bound < 0 {
		return 1
	}
	if diff := la - lb; diff > bound || -diff > bound {
		return bound + 1
	}
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if runeEq(a[i-1], b[j-1], caseSensitive) {
				cost = 0
			}
			v := prev[j-1] + cost
			if ins := curr[j-1] + 1; ins < v {
				v = ins
			}
			if del := prev[j] + 1; del < v {
				v = del
			}
			curr[j] = v
			if v < rowMin {
				rowMin = v
			}
		}
		if rowMin > bound {
			return bound + 1
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

func runeEq(a, b rune, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return utils.EqualFold(a, b)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
