package story

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/storygen"
)

// fakeGenerator returns canned results and records prompts.
type fakeGenerator struct {
	text       string
	image      string
	structured map[string]any

	prompts      []string
	instructions []string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) string {
	f.prompts = append(f.prompts, prompt)
	return f.text
}

func (f *fakeGenerator) GenerateImage(_ context.Context, prompt string) (string, bool) {
	f.prompts = append(f.prompts, prompt)
	return f.image, f.image != ""
}

func (f *fakeGenerator) CreateChat(systemInstruction string) storygen.ChatSession {
	f.instructions = append(f.instructions, systemInstruction)
	return storygen.NewAdapter(storygen.OfflineBackend{}).CreateChat(systemInstruction)
}

func (f *fakeGenerator) GenerateStructured(_ context.Context, prompt string, _ *storygen.Schema) map[string]any {
	f.prompts = append(f.prompts, prompt)
	if f.structured == nil {
		return map[string]any{}
	}
	return f.structured
}

func newTestNarrator(gen storygen.Generator) *Narrator {
	return NewNarrator(gen, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func liveQuiz() map[string]any {
	return map[string]any{
		"scenario":     "A stranger offers a sure thing.",
		"question":     "Invest?",
		"options":      []any{"yes", "no", "ask around"},
		"outcomes":     []any{"lost it", "kept it", "learned more"},
		"correctIndex": float64(2),
		"explanation":  "If it sounds too good, it is.",
	}
}

func TestModuleQuiz_Live(t *testing.T) {
	gen := &fakeGenerator{structured: liveQuiz()}
	quiz := newTestNarrator(gen).ModuleQuiz(context.Background(), QuizRequest{
		LevelName:  "Level 1",
		ModuleName: "Scams",
		Profile:    Profile{Age: 30, Industry: "designer"},
	})

	assert.Equal(t, "Invest?", quiz.Question)
	assert.Equal(t, []string{"yes", "no", "ask around"}, quiz.Options)
	assert.Equal(t, 2, quiz.CorrectIndex)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "designer")
}

func TestModuleQuiz_ShapeViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"generation failed", func(m map[string]any) { clear(m) }},
		{"two options", func(m map[string]any) { m["options"] = []any{"a", "b"} }},
		{"two outcomes", func(m map[string]any) { m["outcomes"] = []any{"a", "b"} }},
		{"index out of range", func(m map[string]any) { m["correctIndex"] = float64(3) }},
		{"negative index", func(m map[string]any) { m["correctIndex"] = float64(-1) }},
		{"fractional index", func(m map[string]any) { m["correctIndex"] = 1.5 }},
		{"options wrong type", func(m map[string]any) { m["options"] = "a,b,c" }},
		{"empty question", func(m map[string]any) { m["question"] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := liveQuiz()
			tt.mutate(m)
			gen := &fakeGenerator{structured: m}

			quiz := newTestNarrator(gen).ModuleQuiz(context.Background(), QuizRequest{ModuleName: "Scams"})
			assert.Equal(t, FallbackQuiz("Scams"), quiz)
		})
	}
}

func TestModuleQuiz_YoungerPlayersGetSimplePrompt(t *testing.T) {
	gen := &fakeGenerator{}
	newTestNarrator(gen).ModuleQuiz(context.Background(), QuizRequest{
		ModuleName:       "Saving",
		Profile:          Profile{Age: 10},
		NarrativeContext: "The forest was quiet.",
	})

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "for a child about Saving")
	assert.Contains(t, gen.prompts[0], "The forest was quiet.")
}

func TestUpdateNarrative_NoOpOnFailure(t *testing.T) {
	contexts := []string{
		"",
		"Game Start.",
		"雨夜，霓虹灯下。 ",
		strings.Repeat("long ", 400),
	}

	for _, c := range contexts {
		gen := &fakeGenerator{text: ""}
		got := newTestNarrator(gen).UpdateNarrative(context.Background(), NarrativeUpdate{
			Context:  c,
			Scenario: "s",
			Choice:   "c",
			Outcome:  "o",
		})
		assert.Equal(t, c, got)
	}

	gen := &fakeGenerator{text: "   \n"}
	assert.Equal(t, "Game Start.", newTestNarrator(gen).UpdateNarrative(context.Background(), NarrativeUpdate{Context: "Game Start."}))
}

func TestUpdateNarrative_Appends(t *testing.T) {
	gen := &fakeGenerator{text: " You kept your cash. \n"}
	got := newTestNarrator(gen).UpdateNarrative(context.Background(), NarrativeUpdate{Context: "Game Start."})
	assert.Equal(t, "Game Start. You kept your cash.", got)
}

func TestUpdateNarrative_CapsToLastRunes(t *testing.T) {
	gen := &fakeGenerator{text: "终"}
	prior := strings.Repeat("雨", 1200)

	got := newTestNarrator(gen).UpdateNarrative(context.Background(), NarrativeUpdate{Context: prior})
	r := []rune(got)
	assert.Len(t, r, NarrativeCap)
	assert.Equal(t, "雨 终", string(r[len(r)-3:]))
}

func TestReport_Live(t *testing.T) {
	gen := &fakeGenerator{structured: map[string]any{
		"personaTitle": "The Patient Hunter",
		"analysis":     "You waited.",
		"advice":       "Keep waiting.",
		"score":        float64(91),
	}}
	h := map[string]Record{
		"b": {ModuleID: "b", Timestamp: 2, Quiz: FallbackQuiz("second"), SelectedIndex: 1},
		"a": {ModuleID: "a", Timestamp: 1, Quiz: FallbackQuiz("first"), SelectedIndex: 2, Optimal: true},
	}

	report := newTestNarrator(gen).Report(context.Background(), h, 25)
	assert.Equal(t, Report{PersonaTitle: "The Patient Hunter", Analysis: "You waited.", Advice: "Keep waiting.", Score: 91}, report)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "25 year old")
	first := strings.Index(prompt, "Decision 1:")
	second := strings.Index(prompt, "Decision 2:")
	require.True(t, first >= 0 && second > first)
	assert.Contains(t, prompt[first:second], "balanced route on first")
	assert.Contains(t, prompt[second:], "aggressive route on second")
}

func TestReport_Incomplete(t *testing.T) {
	h := history(5, 4)
	tests := []struct {
		name string
		out  map[string]any
	}{
		{"generation failed", nil},
		{"missing advice", map[string]any{"personaTitle": "x", "analysis": "y", "score": float64(50)}},
		{"score out of range", map[string]any{"personaTitle": "x", "analysis": "y", "advice": "z", "score": float64(140)}},
		{"score wrong type", map[string]any{"personaTitle": "x", "analysis": "y", "advice": "z", "score": "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{structured: tt.out}
			assert.Equal(t, FallbackReport(h, 30), newTestNarrator(gen).Report(context.Background(), h, 30))
		})
	}
}

func TestIntro(t *testing.T) {
	gen := &fakeGenerator{
		structured: map[string]any{"story": "Rain again."},
		image:      "https://cdn.example.com/intro.png",
	}
	intro := newTestNarrator(gen).Intro(context.Background(), Profile{Nickname: "Lin", Age: 30, AvatarStyle: "noir"})
	assert.Equal(t, IntroData{Story: "Rain again.", ImageURL: "https://cdn.example.com/intro.png"}, intro)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "Film Noir")
}

func TestIntro_Fallbacks(t *testing.T) {
	gen := &fakeGenerator{}
	intro := newTestNarrator(gen).Intro(context.Background(), Profile{Nickname: "Lin", Age: 9})
	assert.Equal(t, IntroData{Story: FallbackIntro("Lin")}, intro)
}

func TestLevelImage_UsesRecentContext(t *testing.T) {
	gen := &fakeGenerator{image: "data:image/png;base64,AA=="}
	narrative := strings.Repeat("q", 300) + strings.Repeat("z", 200)

	ref, ok := newTestNarrator(gen).LevelImage(context.Background(), LevelImageRequest{
		Title:            "LEVEL 2",
		NarrativeContext: narrative,
	})
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AA==", ref)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], strings.Repeat("z", 200))
	assert.NotContains(t, gen.prompts[0], "q")
	assert.Contains(t, gen.prompts[0], "Cinematic concept art")
}

func TestLevelImage_NoImage(t *testing.T) {
	_, ok := newTestNarrator(&fakeGenerator{}).LevelImage(context.Background(), LevelImageRequest{Title: "x"})
	assert.False(t, ok)
}

func TestAssistant_Personas(t *testing.T) {
	gen := &fakeGenerator{}
	n := newTestNarrator(gen)

	session := n.Assistant(Profile{Nickname: "Kid", Age: 8})
	n.Assistant(Profile{Nickname: "Sam", Age: 15})
	n.Assistant(Profile{Nickname: "Ana", Age: 40})

	require.Len(t, gen.instructions, 3)
	assert.Contains(t, gen.instructions[0], "Magic Book")
	assert.Contains(t, gen.instructions[1], "Mysterious Senior")
	assert.Contains(t, gen.instructions[2], "Shadow Advisor")
	assert.Equal(t, gen.instructions[0], session.SystemInstruction())

	assert.Equal(t, "", session.SendMessage(context.Background(), "how do I save?"))
	assert.Empty(t, session.History())
}
