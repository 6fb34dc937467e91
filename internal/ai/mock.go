package ai

import (
	"context"
	"hash/fnv"
	"strings"
)

var mockLines = []string{
	"Oh, that's cute. Did you practice that in the mirror, or did it just come naturally like your bad decisions?",
	"I've seen better comebacks in a clearance bin. Try again, champ.",
	"Is that the best you've got? My error messages have more personality.",
	"Fascinating. I'll add that to my collection of things not worth remembering.",
	"You call that a roast? I've had warmer ice cubes.",
}

// MockClient picks a canned line deterministically from the request, so
// local runs and tests need no network.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) GenerateMove(_ context.Context, req MoveRequest) (string, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.PersonaKey))
	_, _ = h.Write([]byte(req.SessionID))
	_, _ = h.Write([]byte(strings.TrimSpace(req.Message)))
	return mockLines[int(h.Sum32()%uint32(len(mockLines)))], nil
}
