package story

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mhpenta/storygen"
)

const (
	// NarrativeCap bounds the running story summary, in runes.
	NarrativeCap = 1000

	// levelContextRunes is how much of the summary feeds a level image.
	levelContextRunes = 200

	defaultIndustry = "office worker"
)

var (
	introSchema = storygen.Object(map[string]*storygen.Schema{
		"story": storygen.String(),
	}, "story")

	quizSchema = storygen.Object(map[string]*storygen.Schema{
		"scenario":     storygen.String(),
		"question":     storygen.String(),
		"options":      storygen.ArrayOf(storygen.String()),
		"outcomes":     storygen.ArrayOf(storygen.String()),
		"correctIndex": storygen.Integer(),
		"explanation":  storygen.String(),
	}, "scenario", "question", "options", "outcomes", "correctIndex")

	reportSchema = storygen.Object(map[string]*storygen.Schema{
		"personaTitle": storygen.String(),
		"analysis":     storygen.String(),
		"advice":       storygen.String(),
		"score":        storygen.Integer(),
	}, "personaTitle", "analysis", "advice", "score")
)

// Narrator produces game content from a Generator. Every method returns
// complete content: when generation fails it substitutes the matching
// fallback.
type Narrator struct {
	gen    storygen.Generator
	logger *slog.Logger
}

// NarratorOption configures a Narrator.
type NarratorOption func(*Narrator)

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger *slog.Logger) NarratorOption {
	return func(n *Narrator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNarrator binds a Narrator to gen.
func NewNarrator(gen storygen.Generator, opts ...NarratorOption) *Narrator {
	n := &Narrator{
		gen:    gen,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Intro generates the opening story and its illustration. The two calls are
// independent: a missing image keeps the story, a missing story keeps the
// image.
func (n *Narrator) Intro(ctx context.Context, p Profile) IntroData {
	out := n.gen.GenerateStructured(ctx, introPrompt(p), introSchema)

	story, _ := out["story"].(string)
	story = strings.TrimSpace(story)
	if story == "" {
		n.logger.Warn("using fallback intro", "nickname", p.Nickname)
		story = FallbackIntro(p.Nickname)
	}

	intro := IntroData{Story: story}
	imagePrompt := stylePrompt(p.AvatarStyle) +
		" A lone figure standing in a city street, looking at a distant light, atmospheric, cinematic composition, high quality."
	if ref, ok := n.gen.GenerateImage(ctx, imagePrompt); ok {
		intro.ImageURL = ref
	}
	return intro
}

// LevelImageRequest describes the art for one level.
type LevelImageRequest struct {
	Title            string
	Description      string
	AvatarStyle      string
	NarrativeContext string
}

// LevelImage generates background art for a level. ok is false when no
// image was produced.
func (n *Narrator) LevelImage(ctx context.Context, req LevelImageRequest) (string, bool) {
	prompt := fmt.Sprintf("%s\nEnvironment art for a level titled %q. %s\nContext from story: %s.\nAtmospheric background, no text, cinematic lighting.",
		stylePrompt(req.AvatarStyle),
		req.Title,
		req.Description,
		lastRunes(req.NarrativeContext, levelContextRunes),
	)
	return n.gen.GenerateImage(ctx, prompt)
}

// QuizRequest identifies the module a decision is generated for.
type QuizRequest struct {
	LevelName        string
	ModuleName       string
	LevelID          int
	Profile          Profile
	NarrativeContext string
}

// ModuleQuiz generates a decision for a module. Any shape violation in the
// generated quiz yields FallbackQuiz(req.ModuleName).
func (n *Narrator) ModuleQuiz(ctx context.Context, req QuizRequest) Quiz {
	out := n.gen.GenerateStructured(ctx, quizPrompt(req), quizSchema)

	var quiz Quiz
	if err := decode(out, &quiz); err != nil {
		n.logger.Warn("using fallback quiz",
			"module", req.ModuleName,
			"error", err.Error(),
		)
		return FallbackQuiz(req.ModuleName)
	}
	if err := quiz.Validate(); err != nil {
		n.logger.Warn("using fallback quiz",
			"module", req.ModuleName,
			"error", err.Error(),
		)
		return FallbackQuiz(req.ModuleName)
	}
	return quiz
}

// NarrativeUpdate is the latest turn to fold into the story summary.
type NarrativeUpdate struct {
	Context  string
	Scenario string
	Choice   string
	Outcome  string
	Optimal  bool
}

// UpdateNarrative appends a one-sentence summary of the turn to the story
// context, keeping the last NarrativeCap runes. When no summary could be
// generated the context is returned unchanged.
func (n *Narrator) UpdateNarrative(ctx context.Context, u NarrativeUpdate) string {
	prompt := fmt.Sprintf("Update the story summary based on the latest turn.\n"+
		"Current story: %q\n"+
		"New event: %q. Choice: %q. Result: %q. Wise choice: %t.\n"+
		"Task: write a one-sentence summary in a noir style.",
		u.Context, u.Scenario, u.Choice, u.Outcome, u.Optimal)

	entry := strings.TrimSpace(n.gen.GenerateText(ctx, prompt))
	if entry == "" {
		n.logger.Warn("narrative unchanged, no summary generated")
		return u.Context
	}
	return lastRunes(u.Context+" "+entry, NarrativeCap)
}

// Report generates the end-of-game assessment. An incomplete report yields
// FallbackReport(history, age).
func (n *Narrator) Report(ctx context.Context, history map[string]Record, age int) Report {
	prompt := fmt.Sprintf("Based on the game log below, write a city survival assessment for a %d year old player. "+
		"Sharp style with dark humor. Give a score from 0 to 100.\n%s", age, summarize(history))

	out := n.gen.GenerateStructured(ctx, prompt, reportSchema)

	var report Report
	if err := decode(out, &report); err != nil {
		n.logger.Warn("using fallback report", "error", err.Error())
		return FallbackReport(history, age)
	}
	if err := report.Validate(); err != nil {
		n.logger.Warn("using fallback report", "error", err.Error())
		return FallbackReport(history, age)
	}
	return report
}

// Assistant starts a conversation with the in-game advisor whose persona
// matches the player's age group.
func (n *Narrator) Assistant(p Profile) storygen.ChatSession {
	return n.gen.CreateChat(assistantInstruction(p))
}

func introPrompt(p Profile) string {
	switch p.Group() {
	case AgeChild:
		return fmt.Sprintf("The player is a young adventurer called %s. Write a fantasy opening of about 100 words. "+
			"Setting: the entrance of a misty forest. Tone: mysterious but hopeful.", p.Nickname)
	case AgeTeen:
		return fmt.Sprintf("The player is a high school student called %s. Write a 100 word opening. "+
			"Setting: a noisy school corridor full of material temptation and peer pressure. "+
			"Tone: youthful, uncertain, eager to prove themselves.", p.Nickname)
	default:
		return fmt.Sprintf("RPG setting: a cyberpunk metropolis.\n"+
			"Player: %s, occupation: %s.\n"+
			"Task: write a 120 word film noir opening narration.\n"+
			"1. Setting: rainy night, neon, towering office blocks, crowded subway, tired eyes.\n"+
			"2. Core conflict: in a city hungry for money, are you the hunter or the prey?\n"+
			"3. Tone: cold, realistic, tense.\n"+
			"Do not say welcome, start narrating directly.", p.Nickname, cmp.Or(p.Industry, "nobody"))
	}
}

func quizPrompt(req QuizRequest) string {
	group := req.Profile.Group()
	if group != AgeAdult {
		return fmt.Sprintf("Create a fun RPG story choice for a %s about %s. Adapt to context: %s. "+
			"Make choices tricky but fun. Return JSON.", group, req.ModuleName, req.NarrativeContext)
	}

	return fmt.Sprintf("You are the game master of an immersive text adventure.\n"+
		"Setting: a realist metropolis full of opportunity and traps.\n"+
		"Current chapter: %s - %s.\n"+
		"Player occupation: %s.\n"+
		"Story so far: %q\n"+
		"Create a moment of decision. Adjust difficulty and temptation to the story so far.\n"+
		"1. Create an information gap: the options must not be obviously good or bad.\n"+
		"2. Shuffle the order of the three options.\n"+
		"3. Each outcome must follow from the story.\n"+
		"correctIndex is the index (0-2) of the option with the best long-term financial judgment.\n"+
		"Return JSON.",
		req.LevelName, req.ModuleName, cmp.Or(req.Profile.Industry, defaultIndustry), req.NarrativeContext)
}

func assistantInstruction(p Profile) string {
	switch p.Group() {
	case AgeChild:
		return fmt.Sprintf("You are the Spirit of the Magic Book. The user is %s. Answer money questions as if telling a story.", p.Nickname)
	case AgeTeen:
		return fmt.Sprintf("You are the Mysterious Senior. The user is %s. You talk cool and a bit rebellious, but your values are sound.", p.Nickname)
	default:
		return fmt.Sprintf("You are the city's Shadow Advisor. The user is %s. You speak like a consigliere: calm, objective, even cold. "+
			"When weighing options, look beyond money at people, risk and the situation.", p.Nickname)
	}
}

func stylePrompt(style string) string {
	switch style {
	case "cyberpunk":
		return "Cyberpunk art style, neon lights, rain, futuristic city, dark atmosphere, purple and teal."
	case "noir":
		return "Film Noir art style, black and white, dramatic shadows, mystery, detective atmosphere."
	case "anime":
		return "Anime background art, detailed clouds, emotional lighting, city of the future."
	case "oil":
		return "Oil painting style, moody, expressive, dark palette, concept art."
	default:
		return "Cinematic concept art, atmospheric lighting."
	}
}

// summarize lists decisions in play order. Records with equal timestamps
// are ordered by module id.
func summarize(history map[string]Record) string {
	records := make([]Record, 0, len(history))
	for _, r := range history {
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b Record) int {
		return cmp.Or(cmp.Compare(a.Timestamp, b.Timestamp), cmp.Compare(a.ModuleID, b.ModuleID))
	})

	var sb strings.Builder
	for i, r := range records {
		fmt.Fprintf(&sb, "Decision %d: %s... chose: %s (optimal: %t)\n",
			i+1, firstRunes(r.Quiz.Question, 10), r.Choice(), r.Optimal)
	}
	return sb.String()
}

// decode converts a structured result into v.
func decode(m map[string]any, v any) error {
	if len(m) == 0 {
		return storygen.ErrEmptyResponse
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
