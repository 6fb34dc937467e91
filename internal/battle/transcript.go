package battle

import "strings"

// ThreadText serializes the transcript as "A: ..." / "B: ..." lines in
// message order. Lines from unknown participants are skipped.
func ThreadText(s Session) string {
	lines := make([]string, 0, len(s.Messages))
	for _, message := range s.Messages {
		side, ok := s.SideOf(message.ParticipantID)
		if !ok {
			continue
		}
		lines = append(lines, string(side)+": "+message.Content)
	}
	return strings.Join(lines, "\n")
}

// SideTexts returns every A line and every B line, each joined by newlines.
func SideTexts(s Session) (string, string) {
	var aLines, bLines []string
	for _, message := range s.Messages {
		switch message.ParticipantID {
		case s.A.ID:
			aLines = append(aLines, message.Content)
		case s.B.ID:
			bLines = append(bLines, message.Content)
		}
	}
	return strings.Join(aLines, "\n"), strings.Join(bLines, "\n")
}
