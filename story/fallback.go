package story

import (
	"fmt"
	"math"
	"strings"
)

// MinFallbackScore is the lowest score an offline report shows.
const MinFallbackScore = 60

// FallbackQuiz returns the offline decision for moduleName. The balanced
// option (index 2) is the correct one.
func FallbackQuiz(moduleName string) Quiz {
	name := strings.TrimSpace(moduleName)
	if name == "" {
		name = "this situation"
	}

	return Quiz{
		Setup:    "The signal is unstable. The local contingency plan is in effect.",
		Question: fmt.Sprintf("Facing %q, what do you decide?", name),
		Options: []string{
			fmt.Sprintf("Take the conservative route on %s and avoid the risk", name),
			fmt.Sprintf("Take the aggressive route on %s and chase the upside", name),
			fmt.Sprintf("Take the balanced route on %s and move forward steadily", name),
		},
		Outcomes: []string{
			"You played it safe. You missed the opportunity, but you also avoided the loss.",
			"You took on a lot of risk. The short-term gain came with hidden costs.",
			"Sound advice showed you the whole board, and you made a balanced call.",
		},
		CorrectIndex: 2,
		Explanation:  "When information is unclear, getting professional advice or staying balanced is usually how you survive.",
	}
}

// Score returns max(60, round(100*K/N)) for N records with K optimal
// choices. An empty history counts as N=1.
func Score(history map[string]Record) int {
	optimal := 0
	for _, r := range history {
		if r.Optimal {
			optimal++
		}
	}
	total := max(len(history), 1)

	score := int(math.Round(100 * float64(optimal) / float64(total)))
	return max(MinFallbackScore, score)
}

// FallbackReport returns a complete offline assessment of history. The
// player's age does not change the result.
func FallbackReport(history map[string]Record, _ int) Report {
	return Report{
		PersonaTitle: "Resilient Survivor (offline assessment)",
		Analysis: "The link to the city's central database is unstable, so this is a local assessment " +
			"based on your past decisions. You showed you can survive in an uncertain environment. " +
			"You made your own choices and lived with the consequences.",
		Advice: "Cash is king. When information is scarce, a conservative strategy keeps you alive longer. " +
			"Try a full analysis again once the connection is back.",
		Score: Score(history),
	}
}

// FallbackIntro returns the opening used when no story could be generated.
func FallbackIntro(nickname string) string {
	return fmt.Sprintf("Connecting... %s, the gates of the city are opening. Are you ready for the challenge?", nickname)
}
