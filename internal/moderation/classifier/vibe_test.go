package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iamwavecut/prime/internal/adapters/llm"
)

type stubLLM struct {
	content  string
	err      error
	messages []llm.ChatCompletionMessage
}

func (s *stubLLM) ChatCompletion(_ context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	s.messages = messages
	if s.err != nil {
		return llm.ChatCompletionResponse{}, s.err
	}
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: s.content}}},
	}, nil
}

func TestVibeClassifier(t *testing.T) {
	t.Parallel()

	lines := []ChatLine{
		{Author: "alice", Text: "the election was rigged", At: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{Author: "bob", Text: "no it was not", At: time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)},
	}

	tests := []struct {
		name       string
		model      *stubLLM
		wantStatus VibeStatus
		wantAct    bool
	}{
		{
			name:       "political",
			model:      &stubLLM{content: `{"status": "yes_political", "reason": "election talk", "intervention": "Let's keep politics out of here."}`},
			wantStatus: VibePolitical,
			wantAct:    true,
		},
		{
			name:       "chaotic",
			model:      &stubLLM{content: "```json\n{\"status\": \"yes_chaotic\", \"intervention\": \"Take a breath, folks.\"}\n```"},
			wantStatus: VibeChaotic,
			wantAct:    true,
		},
		{
			name:       "safe",
			model:      &stubLLM{content: `{"status": "safe"}`},
			wantStatus: VibeSafe,
		},
		{
			name:       "unknown status is safe",
			model:      &stubLLM{content: `{"status": "maybe", "intervention": "hm"}`},
			wantStatus: VibeSafe,
		},
		{
			name:       "error is safe",
			model:      &stubLLM{err: errors.New("rate limited")},
			wantStatus: VibeSafe,
		},
		{
			name:       "garbage is safe",
			model:      &stubLLM{content: "no idea"},
			wantStatus: VibeSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewVibeClassifier(tt.model, time.Second).Classify(context.Background(), lines)
			if got.Status != tt.wantStatus || got.NeedsIntervention() != tt.wantAct {
				t.Fatalf("Classify() = %+v, want status %q act %v", got, tt.wantStatus, tt.wantAct)
			}
			if len(tt.model.messages) != 2 || !strings.Contains(tt.model.messages[1].Content, "[10:00:05] bob: no it was not") {
				t.Fatalf("unexpected transcript: %+v", tt.model.messages)
			}
		})
	}
}

func TestVibeClassifierEmptyHistory(t *testing.T) {
	t.Parallel()

	model := &stubLLM{content: `{"status": "yes_chaotic", "intervention": "x"}`}
	got := NewVibeClassifier(model, time.Second).Classify(context.Background(), nil)
	if got.Status != VibeSafe || model.messages != nil {
		t.Fatalf("empty history must not reach the model, got %+v", got)
	}
}
