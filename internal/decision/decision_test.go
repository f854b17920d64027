// file: internal/decision/decision_test.go
// version: 1.0.0
// guid: 4f5a6b7c-8d9e-4f0a-b1c2-3d4e5f6a7b8c

package decision

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/epub-enricher/internal/models"
)

func matchResult(confidence int) models.MatchResult {
	return models.MatchResult{
		Book: &models.RemoteBook{
			Title:         "Dune",
			Authors:       []string{"Frank Herbert"},
			Publisher:     "Ace Books",
			PublishedDate: "1965-08-01",
			Description:   "Paul Atreides on Arrakis.",
			Language:      "en",
			ImageLinks:    map[string]string{"thumbnail": "http://example.com/dune.jpg"},
		},
		Confidence: confidence,
		Strategy:   "ISBN (Google Books)",
		TotalHits:  1,
	}
}

func localDune() *models.LocalBook {
	return &models.LocalBook{Title: "dune", Author: "F. Herbert", Date: "1965"}
}

// scriptedApprover answers each question from the given script and records
// the fields it was asked about.
func scriptedApprover(answers map[string]bool, asked *[]string) Approver {
	return func(field, oldValue, newValue string) (bool, error) {
		if asked != nil {
			*asked = append(*asked, field)
		}
		return answers[field], nil
	}
}

func TestAutomaticApprovesHighConfidence(t *testing.T) {
	u := Automatic{}.Decide(localDune(), matchResult(95))
	require.NotNil(t, u)
	assert.Equal(t, "Dune", u.Fields["title"])
	assert.Equal(t, []string{"Frank Herbert"}, u.Authors)
	assert.Equal(t, "http://example.com/dune.jpg", u.Cover)
}

func TestAutomaticRejectsLowConfidence(t *testing.T) {
	assert.Nil(t, Automatic{}.Decide(localDune(), matchResult(89)))
}

func TestAutomaticAlwaysTrust(t *testing.T) {
	u := Automatic{AlwaysTrust: true}.Decide(localDune(), matchResult(10))
	require.NotNil(t, u)
	assert.False(t, u.Empty())
}

func TestAutomaticNeverApprovesAbsentRecord(t *testing.T) {
	empty := models.MatchResult{Strategy: "None"}
	assert.Nil(t, Automatic{AlwaysTrust: true}.Decide(localDune(), empty))
}

func TestBulkConfirmYes(t *testing.T) {
	var out bytes.Buffer
	p := BulkConfirm{
		Approve: func(field, oldValue, newValue string) (bool, error) { return true, nil },
		Out:     &out,
	}
	u := p.Decide(localDune(), matchResult(60))
	require.NotNil(t, u)
	assert.Equal(t, "Dune", u.Fields["title"])
	// The comparison table must have been rendered before asking.
	assert.Contains(t, out.String(), "Ace Books")
	assert.Contains(t, out.String(), "F. Herbert")
}

func TestBulkConfirmNo(t *testing.T) {
	p := BulkConfirm{
		Approve: func(field, oldValue, newValue string) (bool, error) { return false, nil },
		Out:     &bytes.Buffer{},
	}
	assert.Nil(t, p.Decide(localDune(), matchResult(60)))
}

func TestBulkConfirmChannelUnavailable(t *testing.T) {
	p := BulkConfirm{
		Approve: func(field, oldValue, newValue string) (bool, error) { return true, errors.New("stdin closed") },
		Out:     &bytes.Buffer{},
	}
	assert.Nil(t, p.Decide(localDune(), matchResult(60)))

	// No approver wired at all also rejects.
	assert.Nil(t, BulkConfirm{Out: &bytes.Buffer{}}.Decide(localDune(), matchResult(60)))
}

func TestFieldReviewOrderAndSelection(t *testing.T) {
	var asked []string
	answers := map[string]bool{"title": true, "publisher": false, "description": true, "authors": false, "cover": true}
	p := FieldReview{Approve: scriptedApprover(answers, &asked)}

	u := p.Decide(localDune(), matchResult(60))
	require.NotNil(t, u)

	// local date "1965" matches remote year 1965, language differs (local
	// empty), so the date question must not appear.
	assert.Equal(t, []string{"title", "publisher", "language", "description", "authors", "cover"}, asked)

	assert.Equal(t, "Dune", u.Fields["title"])
	_, hasPublisher := u.Fields["publisher"]
	assert.False(t, hasPublisher, "declined fields must stay out of the update set")
	assert.Equal(t, "Paul Atreides on Arrakis.", u.Fields["description"])
	assert.Nil(t, u.Authors)
	assert.Equal(t, "http://example.com/dune.jpg", u.Cover)
}

func TestFieldReviewDateYearLevelComparison(t *testing.T) {
	var asked []string
	local := localDune()
	local.Date = "1965-12-31" // same year, different day than remote
	p := FieldReview{Approve: scriptedApprover(map[string]bool{}, &asked)}

	p.Decide(local, matchResult(60))
	assert.NotContains(t, asked, "date", "day/month noise must not trigger a prompt")
}

func TestFieldReviewZeroApprovalsMeansNoUpdate(t *testing.T) {
	p := FieldReview{Approve: scriptedApprover(map[string]bool{}, nil)}
	assert.Nil(t, p.Decide(localDune(), matchResult(60)), "zero confirmations must yield no update")
}

func TestFieldReviewSkipsEmptyRemoteValues(t *testing.T) {
	var asked []string
	result := matchResult(60)
	result.Book.Publisher = ""
	result.Book.Description = ""
	p := FieldReview{Approve: scriptedApprover(map[string]bool{}, &asked)}

	p.Decide(localDune(), result)
	assert.NotContains(t, asked, "publisher")
	assert.NotContains(t, asked, "description")
}

func TestFieldReviewNeverApprovesAbsentRecord(t *testing.T) {
	p := FieldReview{Approve: scriptedApprover(map[string]bool{"title": true}, nil)}
	assert.Nil(t, p.Decide(localDune(), models.MatchResult{Strategy: "None"}))
}

func TestThresholdPolicy(t *testing.T) {
	// High confidence: no question asked.
	var asked []string
	p := Threshold{Approve: scriptedApprover(map[string]bool{}, &asked), Out: &bytes.Buffer{}}
	u := p.Decide(localDune(), matchResult(95))
	require.NotNil(t, u)
	assert.Empty(t, asked)

	// Low confidence falls back to one bulk question.
	p = Threshold{Approve: scriptedApprover(map[string]bool{"all fields": true}, &asked), Out: &bytes.Buffer{}}
	u = p.Decide(localDune(), matchResult(60))
	require.NotNil(t, u)
	assert.Equal(t, []string{"all fields"}, asked)

	// AutoSave applies regardless of confidence.
	p = Threshold{AutoSave: true, Out: &bytes.Buffer{}}
	require.NotNil(t, p.Decide(localDune(), matchResult(10)))
}
