// file: internal/decision/decision.go
// version: 1.0.0
// guid: 3e4f5a6b-7c8d-4e9f-a0b1-2c3d4e5f6a7b

package decision

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"

	"github.com/jdfalk/epub-enricher/internal/models"
)

// autoApproveThreshold is the confidence at which a match is applied without
// asking. Fixed alongside the scorer's constants.
const autoApproveThreshold = 90

// Approver answers a single approval question. field names what is being
// changed, oldValue/newValue show the change. An error means the
// confirmation channel is unavailable (closed stdin, no tty); policies
// treat that as a rejection, never as consent.
type Approver func(field, oldValue, newValue string) (bool, error)

// Update is the set of approved changes for one book. A nil Update from a
// policy means "no update"; partial silent applies never happen.
type Update struct {
	Fields  map[string]string // canonical field name -> approved value
	Authors []string          // non-nil once the author list is approved
	Cover   string            // approved cover URL, "" when not approved
}

func newUpdate() *Update {
	return &Update{Fields: map[string]string{}}
}

// Empty reports whether nothing was approved.
func (u *Update) Empty() bool {
	return u == nil || (len(u.Fields) == 0 && u.Authors == nil && u.Cover == "")
}

// Policy decides which remote fields, if any, may be applied to the local
// record. Implementations never approve an absent remote record.
type Policy interface {
	Decide(local *models.LocalBook, result models.MatchResult) *Update
}

// fullUpdate approves every non-empty remote field.
func fullUpdate(remote *models.RemoteBook) *Update {
	u := newUpdate()
	setIfPresent(u, "title", remote.Title)
	setIfPresent(u, "publisher", remote.Publisher)
	setIfPresent(u, "date", remote.PublishedDate)
	setIfPresent(u, "language", remote.Language)
	setIfPresent(u, "description", remote.Description)
	if len(remote.Authors) > 0 {
		u.Authors = remote.Authors
	}
	u.Cover = remote.CoverURL()
	return u
}

func setIfPresent(u *Update, field, value string) {
	if value != "" && value != "Unknown" {
		u.Fields[field] = value
	}
}

// Automatic applies the whole remote record when the confidence clears the
// threshold, or unconditionally when AlwaysTrust is set.
type Automatic struct {
	AlwaysTrust bool
}

// Decide implements Policy.
func (p Automatic) Decide(_ *models.LocalBook, result models.MatchResult) *Update {
	if !result.Found() {
		return nil
	}
	if p.AlwaysTrust || result.Confidence >= autoApproveThreshold {
		return fullUpdate(result.Book)
	}
	return nil
}

// BulkConfirm renders a full local-vs-remote comparison and asks one yes/no
// question covering the entire record.
type BulkConfirm struct {
	Approve Approver
	Out     io.Writer
}

// Decide implements Policy.
func (p BulkConfirm) Decide(local *models.LocalBook, result models.MatchResult) *Update {
	if !result.Found() || p.Approve == nil {
		return nil
	}
	p.renderComparison(local, result.Book)

	summary := fmt.Sprintf("%s by %s", result.Book.Title, strings.Join(result.Book.Authors, ", "))
	ok, err := p.Approve("all fields", local.Title, summary)
	if err != nil || !ok {
		return nil
	}
	return fullUpdate(result.Book)
}

func (p BulkConfirm) renderComparison(local *models.LocalBook, remote *models.RemoteBook) {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Field", "Local", "Remote"})
	t.AppendRows([]table.Row{
		{"Title", local.Title, remote.Title},
		{"Author", local.Author, strings.Join(remote.Authors, ", ")},
		{"Publisher", local.Publisher, remote.Publisher},
		{"Date", local.Date, remote.PublishedDate},
		{"Language", local.Language, remote.Language},
		{"Cover", "", remote.CoverURL()},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// reviewedFields is the fixed order for per-field review. Authors and cover
// follow as separate questions.
var reviewedFields = []string{"title", "publisher", "date", "language", "description"}

// FieldReview walks each differing field and asks for individual approval,
// accumulating only the approved ones.
type FieldReview struct {
	Approve Approver
}

// Decide implements Policy.
func (p FieldReview) Decide(local *models.LocalBook, result models.MatchResult) *Update {
	if !result.Found() || p.Approve == nil {
		return nil
	}
	remote := result.Book
	u := newUpdate()

	localValues := map[string]string{
		"title":       local.Title,
		"publisher":   local.Publisher,
		"date":        local.Date,
		"language":    local.Language,
		"description": "",
	}
	remoteValues := map[string]string{
		"title":       remote.Title,
		"publisher":   remote.Publisher,
		"date":        remote.PublishedDate,
		"language":    remote.Language,
		"description": remote.Description,
	}

	for _, field := range reviewedFields {
		oldValue, newValue := localValues[field], remoteValues[field]
		if newValue == "" || newValue == "Unknown" {
			continue
		}
		if fieldsEqual(field, oldValue, newValue) {
			continue
		}
		ok, err := p.Approve(field, oldValue, newValue)
		if err != nil {
			// Channel gone; whatever was approved so far still counts, but
			// nothing further may be assumed approved.
			break
		}
		if ok {
			u.Fields[field] = newValue
		}
	}

	if authors := strings.Join(remote.Authors, ", "); authors != "" && authors != "Unknown" && authors != local.Author {
		if ok, err := p.Approve("authors", local.Author, authors); err == nil && ok {
			u.Authors = remote.Authors
		}
	}

	if cover := remote.CoverURL(); cover != "" {
		if ok, err := p.Approve("cover", "", cover); err == nil && ok {
			u.Cover = cover
		}
	}

	if u.Empty() {
		return nil
	}
	return u
}

// fieldsEqual compares a local and remote value for review purposes. Dates
// compare at year level only, so day/month noise does not trigger a prompt;
// languages compare by base tag, so "en" and "en-US" agree.
func fieldsEqual(field, local, remote string) bool {
	switch field {
	case "date":
		return yearOf(local) == yearOf(remote)
	case "language":
		return baseLang(local) != "" && baseLang(local) == baseLang(remote)
	default:
		return local == remote
	}
}

func yearOf(date string) string {
	if len(date) < 4 {
		return date
	}
	return date[:4]
}

func baseLang(tag string) string {
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	base, _ := parsed.Base()
	return base.String()
}

// ForConfig selects the policy for the current run: automatic when auto-save
// or a high-confidence threshold applies, otherwise a bulk confirmation
// through the given approver. Matches the original interactive behavior
// where high confidence saves without asking and anything lower prompts.
type Threshold struct {
	AutoSave bool
	Approve  Approver
	Out      io.Writer
}

// Decide implements Policy.
func (p Threshold) Decide(local *models.LocalBook, result models.MatchResult) *Update {
	if !result.Found() {
		return nil
	}
	if auto := (Automatic{AlwaysTrust: p.AutoSave}).Decide(local, result); auto != nil {
		return auto
	}
	return BulkConfirm{Approve: p.Approve, Out: p.Out}.Decide(local, result)
}
