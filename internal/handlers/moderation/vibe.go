package moderation

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/event"
	"github.com/iamwavecut/prime/internal/moderation/classifier"
)

type VibeClassifier interface {
	Classify(ctx context.Context, lines []classifier.ChatLine) classifier.VibeVerdict
}

type Publisher interface {
	Publish(record event.Record)
}

// VibeMonitor posts the model's intervention when a channel heats up.
type VibeMonitor struct {
	classifier VibeClassifier
	poster     Replier
	bus        Publisher
	logger     *log.Entry
}

func NewVibeMonitor(c VibeClassifier, poster Replier, bus Publisher) *VibeMonitor {
	return &VibeMonitor{
		classifier: c,
		poster:     poster,
		bus:        bus,
		logger:     log.WithField("object", "VibeMonitor"),
	}
}

func (m *VibeMonitor) Check(ctx context.Context, guildID, channelID string, lines []classifier.ChatLine) {
	verdict := m.classifier.Classify(ctx, lines)
	if !verdict.NeedsIntervention() {
		return
	}
	entry := m.logger.WithFields(log.Fields{"channel_id": channelID, "status": verdict.Status})
	if err := m.poster.PostToChannel(ctx, channelID, "🕊️ "+verdict.Intervention); err != nil {
		entry.WithError(err).Warn("cant post intervention")
		return
	}
	entry.WithField("reason", verdict.Reason).Info("vibe intervention posted")
	if m.bus != nil {
		m.bus.Publish(event.Record{
			GuildID:   guildID,
			ChannelID: channelID,
			Action:    event.ActionVibeCheck,
			Reason:    string(verdict.Status) + ": " + verdict.Reason,
		})
	}
}
