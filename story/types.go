// Package story turns the generation capabilities into the narrative game's
// content: intros, level art, decision quizzes, the running story summary,
// the final report, and the in-game assistant. Every call site has a
// deterministic fallback so the game stays playable offline.
package story

import (
	"errors"
	"fmt"
	"strings"
)

// AgeGroup selects tone, persona and quiz style.
type AgeGroup string

const (
	AgeChild AgeGroup = "child"
	AgeTeen  AgeGroup = "teen"
	AgeAdult AgeGroup = "adult"
)

// AgeGroupFor maps an age in years to its group.
func AgeGroupFor(age int) AgeGroup {
	switch {
	case age < 13:
		return AgeChild
	case age < 18:
		return AgeTeen
	default:
		return AgeAdult
	}
}

// Profile describes the player.
type Profile struct {
	Nickname    string   `json:"nickname"`
	Age         int      `json:"age"`
	AgeGroup    AgeGroup `json:"ageGroup"`
	Industry    string   `json:"industry,omitempty"`
	AvatarStyle string   `json:"avatarStyle"`
}

// Group returns the profile's age group, deriving it from Age when unset.
func (p Profile) Group() AgeGroup {
	switch p.AgeGroup {
	case AgeChild, AgeTeen, AgeAdult:
		return p.AgeGroup
	default:
		return AgeGroupFor(p.Age)
	}
}

// QuizOptions is the number of choices every decision offers.
const QuizOptions = 3

var (
	ErrQuizShape   = errors.New("quiz does not have the expected shape")
	ErrReportShape = errors.New("report is incomplete")
	errEmptyField  = errors.New("empty field")
	errOutOfBounds = errors.New("out of bounds")
)

// Quiz is one decision moment.
type Quiz struct {
	Setup        string   `json:"scenario"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	Outcomes     []string `json:"outcomes"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Validate checks the shape every quiz must have, live or fallback:
// exactly three options, three index-aligned outcomes and a correct index
// in range.
func (q Quiz) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question: %w", ErrQuizShape, errEmptyField)
	}
	if len(q.Options) != QuizOptions {
		return fmt.Errorf("%w: %d options", ErrQuizShape, len(q.Options))
	}
	if len(q.Outcomes) != len(q.Options) {
		return fmt.Errorf("%w: %d outcomes for %d options", ErrQuizShape, len(q.Outcomes), len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct index %d: %w", ErrQuizShape, q.CorrectIndex, errOutOfBounds)
	}
	return nil
}

// Record is the player's answer to one module's quiz.
type Record struct {
	ModuleID      string `json:"moduleId"`
	Quiz          Quiz   `json:"quizData"`
	SelectedIndex int    `json:"selectedOptionIndex"`
	Timestamp     int64  `json:"timestamp"`
	Optimal       bool   `json:"isOptimal"`
}

// Choice returns the text of the selected option, or "" when the index is
// out of range.
func (r Record) Choice() string {
	if r.SelectedIndex < 0 || r.SelectedIndex >= len(r.Quiz.Options) {
		return ""
	}
	return r.Quiz.Options[r.SelectedIndex]
}

// Report is the end-of-game assessment.
type Report struct {
	PersonaTitle string `json:"personaTitle"`
	Analysis     string `json:"analysis"`
	Advice       string `json:"advice"`
	Score        int    `json:"score"`
}

// Validate reports whether every field of the report is usable.
func (r Report) Validate() error {
	for name, v := range map[string]string{
		"personaTitle": r.PersonaTitle,
		"analysis":     r.Analysis,
		"advice":       r.Advice,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s: %w", ErrReportShape, name, errEmptyField)
		}
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("%w: score %d: %w", ErrReportShape, r.Score, errOutOfBounds)
	}
	return nil
}

// IntroData is the opening of the story. ImageURL is empty when no image
// was produced.
type IntroData struct {
	Story    string `json:"story"`
	ImageURL string `json:"imageUrl,omitempty"`
}
