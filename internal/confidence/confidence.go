// file: internal/confidence/confidence.go
// version: 1.0.0
// guid: 4d5e6f7a-8b9c-0d1e-2f3a-4b5c6d7e8f9a

package confidence

import (
	"fmt"

	"github.com/jdfalk/epub-enricher/internal/matcher"
	"github.com/jdfalk/epub-enricher/internal/models"
)

// Kind identifies which waterfall phase produced a candidate.
type Kind string

const (
	// KindISBN marks a match found by identifier lookup.
	KindISBN Kind = "ISBN"
	// KindText marks a match found by relaxed text search.
	KindText Kind = "Text"
)

// Scoring model constants. These are fixed properties of the algorithm, not
// operator-tunable knobs: changing them changes the waterfall's termination
// behavior.
const (
	isbnBase          = 90
	titleWeight       = 50
	authorWeight      = 40
	mismatchPenalty   = -40
	mismatchThreshold = 0.2
	uniqueBonus       = 10
	ambiguousPenalty  = -10
	ambiguousCutoff   = 100
)

// Score rates a remote candidate against the local record, returning a
// confidence in [0,100] plus human-readable reasons for each term.
//
// Identifier matches start at 90 and can only be penalized (a wildly
// different title suggests a reused or mistyped ISBN). Text matches start at
// 0 and earn points from title and author similarity, with a small
// adjustment for how specific the winning query was.
func Score(kind Kind, local *models.LocalBook, remote *models.RemoteBook, totalHits int) (int, []string) {
	score := 0
	reasons := make([]string, 0, 4)

	base, reason := baseScore(kind)
	score += base
	reasons = append(reasons, reason)

	titlePoints, reason := titleScore(local.Title, remote.Title, kind == KindISBN)
	score += titlePoints
	reasons = append(reasons, reason)

	authorPoints, reason := authorScore(local.Author, remote.Authors, kind == KindISBN)
	score += authorPoints
	reasons = append(reasons, reason)

	uniquePoints, reason := uniquenessScore(totalHits, kind == KindISBN)
	score += uniquePoints
	if reason != "" {
		reasons = append(reasons, reason)
	}

	return clamp(score), reasons
}

func baseScore(kind Kind) (int, string) {
	if kind == KindISBN {
		return isbnBase, fmt.Sprintf("Matched via ISBN (+%d)", isbnBase)
	}
	return 0, "Matched via Text Search (Start at 0)"
}

func titleScore(local, remote string, isISBN bool) (int, string) {
	sim := matcher.Similarity(local, remote)
	if isISBN {
		if sim < mismatchThreshold {
			return mismatchPenalty, fmt.Sprintf("Title Mismatch (%d)", mismatchPenalty)
		}
		return 0, "Title match validated"
	}
	points := int(sim * titleWeight)
	return points, fmt.Sprintf("Title Similarity %d%% (+%d)", int(sim*100), points)
}

func authorScore(local string, remote []string, isISBN bool) (int, string) {
	if isISBN {
		// The identifier is authoritative; author spelling differences between
		// catalogs should not erode an ISBN match.
		return 0, "Author match validated"
	}
	best := matcher.BestSimilarity(local, remote)
	points := int(best * authorWeight)
	return points, fmt.Sprintf("Author Similarity %d%% (+%d)", int(best*100), points)
}

func uniquenessScore(totalHits int, isISBN bool) (int, string) {
	if totalHits == 1 {
		return uniqueBonus, fmt.Sprintf("Unique result (+%d)", uniqueBonus)
	}
	if totalHits > ambiguousCutoff && !isISBN {
		return ambiguousPenalty, fmt.Sprintf("Ambiguous results (%d)", ambiguousPenalty)
	}
	return 0, ""
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
