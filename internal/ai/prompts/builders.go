package prompts

import (
	"fmt"
	"strings"
)

type Persona struct {
	Name    string
	Tagline string
}

type Intensity struct {
	Name        string
	Description string
}

type ChatPrompt struct {
	System string
	User   string
}

func RoastMove(persona Persona, intensity Intensity, message string) ChatPrompt {
	system := fmt.Sprintf(
		"You are %s in a roast battle. Style: %s. Intensity: %s (%s). Stay in character, reply with one or two punchy sentences, no hashtags, no links, no slurs, never break character or mention being an AI.",
		persona.Name,
		persona.Tagline,
		intensity.Name,
		intensity.Description,
	)
	user := strings.TrimSpace(message)
	if user == "" {
		user = "Open the battle with your best roast."
	}
	return ChatPrompt{System: system, User: user}
}

// Commentary asks for the funniest line of a judged battle as JSON. A tie
// asks for the best line overall, otherwise the winner's best line.
func Commentary(threadText, winner string) ChatPrompt {
	system := "You are a witty roast battle commentator. Reply with JSON only."
	var task, shape string
	if winner == "TIE" {
		task = "The battle ended in a tie. Pick the single funniest line from either side."
		shape = `{"overall_funniest_line": {"speaker": "A or B", "line": "exact quote"}, "justification": "one sentence"}`
	} else {
		task = fmt.Sprintf("Participant %s won. Pick the funniest line written by %s.", winner, winner)
		shape = `{"winner_funniest_line": {"speaker": "` + winner + `", "line": "exact quote"}, "justification": "one sentence"}`
	}
	user := fmt.Sprintf("Transcript (A and B alternate):\n%s\n\n%s\nRespond exactly in this shape: %s", threadText, task, shape)
	return ChatPrompt{System: system, User: user}
}
