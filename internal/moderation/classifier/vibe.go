package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/iamwavecut/prime/internal/adapters"
	"github.com/iamwavecut/prime/internal/adapters/llm"
	"github.com/iamwavecut/prime/internal/observability"
)

type VibeStatus string

const (
	VibePolitical VibeStatus = "yes_political"
	VibeChaotic   VibeStatus = "yes_chaotic"
	VibeSafe      VibeStatus = "safe"
)

const vibePrompt = `You watch the mood of a community chat. Read the transcript and decide whether
the conversation has turned into a political argument or has become chaotic and hostile.
Answer only with JSON: {"status": "yes_political"|"yes_chaotic"|"safe", "reason": "short explanation",
"intervention": "one friendly sentence asking members to cool down or change topic"}.`

// ChatLine is one message of a channel transcript.
type ChatLine struct {
	Author string
	Text   string
	At     time.Time
}

type VibeVerdict struct {
	Status       VibeStatus `json:"status"`
	Reason       string     `json:"reason"`
	Intervention string     `json:"intervention"`
}

// NeedsIntervention reports whether the bot should post the intervention.
func (v VibeVerdict) NeedsIntervention() bool {
	return v.Status != VibeSafe && v.Intervention != ""
}

// VibeClassifier asks a text model whether a channel needs a nudge.
type VibeClassifier struct {
	llm     adapters.LLM
	timeout time.Duration
	logger  *log.Entry
}

func NewVibeClassifier(model adapters.LLM, timeout time.Duration) *VibeClassifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VibeClassifier{
		llm:     model,
		timeout: timeout,
		logger:  log.WithField("object", "VibeClassifier"),
	}
}

// Classify returns VibeSafe on any failure.
func (c *VibeClassifier) Classify(ctx context.Context, lines []ChatLine) VibeVerdict {
	safe := VibeVerdict{Status: VibeSafe}
	if c.llm == nil || len(lines) == 0 {
		return safe
	}

	ctx, span := observability.StartSpan(ctx, "classifier.vibe")
	defer span.End()
	started := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.llm.ChatCompletion(callCtx, []llm.ChatCompletionMessage{
		{Role: llm.RoleSystem, Content: vibePrompt},
		{Role: llm.RoleUser, Content: transcript(lines)},
	})
	if err != nil {
		observability.ObserveClassification("vibe", "error", started)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WithError(err).Warn("vibe classification failed")
		return safe
	}

	var verdict VibeVerdict
	if err := decodeAnswer(resp.FirstContent(), &verdict); err != nil {
		observability.ObserveClassification("vibe", "malformed", started)
		c.logger.WithError(err).Warn("malformed vibe verdict")
		return safe
	}
	observability.ObserveClassification("vibe", "ok", started)

	switch verdict.Status {
	case VibePolitical, VibeChaotic:
		return verdict
	default:
		return safe
	}
}

func transcript(lines []ChatLine) string {
	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "[%s] %s: %s\n", line.At.UTC().Format("15:04:05"), line.Author, line.Text)
	}
	return b.String()
}
