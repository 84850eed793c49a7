package event

import (
	"context"

	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/prime/internal/db"
)

type LogStore interface {
	AppendModerationLog(ctx context.Context, entry *db.ModerationLogEntry) error
}

type ChannelPoster interface {
	PostToChannel(ctx context.Context, channelID, text string) error
}

// StoreSink writes records into the moderation_log table.
func StoreSink(store LogStore) Sink {
	return SinkFunc(func(ctx context.Context, record Record) error {
		return store.AppendModerationLog(ctx, &db.ModerationLogEntry{
			ID:           record.ID,
			GuildID:      record.GuildID,
			UserID:       record.UserID,
			Action:       string(record.Action),
			Reason:       record.Reason,
			WarningCount: record.WarningCount,
			Failed:       record.Failed,
			CreatedAt:    record.At,
		})
	})
}

const modLogTemplate = `**Moderation: {{ .action }}{{ if .count }} #{{ .count }}{{ end }}**
User: {{ .user_name }} ({{ .user_id }})
{{- if .reason }}
Reason: {{ .reason }}{{ end }}
{{- if .failed }}
Result: failed{{ end }}`

// ChannelSink mirrors records into the mod-log channel. Spam strikes are not
// mirrored.
func ChannelSink(poster ChannelPoster, channelID string) Sink {
	return SinkFunc(func(ctx context.Context, record Record) error {
		if channelID == "" || record.Action == ActionSpamStrike {
			return nil
		}
		return poster.PostToChannel(ctx, channelID, FormatModLog(record))
	})
}

func FormatModLog(record Record) string {
	name := record.UserName
	if name == "" {
		name = "unknown"
	}
	return tool.ExecTemplate(modLogTemplate, map[string]any{
		"action":    string(record.Action),
		"count":     record.WarningCount,
		"user_name": name,
		"user_id":   record.UserID,
		"reason":    record.Reason,
		"failed":    record.Failed,
	})
}
