package classifier

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/iamwavecut/prime/internal/adapters"
	perrors "github.com/iamwavecut/prime/internal/errors"
	"github.com/iamwavecut/prime/internal/observability"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

const (
	ReasonSafetyBlocked = "Content blocked by AI safety filters (likely NSFW/Gore)"
	ReasonUnverified    = "Media could not be verified"
)

const imagePrompt = `You are a strict community moderator. Inspect the attached image for:
1. NSFW or sexual content of any kind, real or illustrated.
2. Gore: blood, organs, extreme injury or death.
3. Scams: QR scams, fake giveaways, fraudulent promotion.
4. Hate: extremist symbols or slurs.
Answer only with JSON: {"is_bad": true|false, "severity": "SEVERE"|"MEDIUM", "reason": "short explanation"}.
Use SEVERE for any NSFW or gore.`

const videoPrompt = `You are a strict community moderator. Inspect the attached video for NSFW content,
nudity, sexual acts, gore, extreme violence, scams or hate symbols.
Answer only with JSON: {"is_bad": true|false, "severity": "SEVERE"|"MEDIUM", "reason": "short explanation"}.`

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/avi",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// MediaKindOf maps a filename to its media kind and mime type. Files that are
// neither supported images nor videos are reported as not ok.
func MediaKindOf(filename string) (MediaKind, string, bool) {
	ext := strings.ToLower(path.Ext(filename))
	if mime, ok := imageExtensions[ext]; ok {
		return MediaImage, mime, true
	}
	if mime, ok := videoExtensions[ext]; ok {
		return MediaVideo, mime, true
	}
	return "", "", false
}

// HashMedia returns the exact-match fingerprint used for duplicate tracking.
func HashMedia(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

type MediaVerdict struct {
	IsBad    bool     `json:"is_bad"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

type MediaOptions struct {
	Timeout    time.Duration
	FailClosed bool
	CacheSize  int
	CacheTTL   time.Duration
}

// MediaClassifier asks a vision model for a verdict on uploaded media.
type MediaClassifier struct {
	vision     adapters.Vision
	timeout    time.Duration
	failClosed bool
	group      singleflight.Group
	cache      *expirable.LRU[string, MediaVerdict]
	logger     *log.Entry
}

func NewMediaClassifier(vision adapters.Vision, opts MediaOptions) *MediaClassifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &MediaClassifier{
		vision:     vision,
		timeout:    opts.Timeout,
		failClosed: opts.FailClosed,
		cache:      expirable.NewLRU[string, MediaVerdict](opts.CacheSize, nil, opts.CacheTTL),
		logger:     log.WithField("object", "MediaClassifier"),
	}
}

// Classify never returns an error: failures resolve to the configured
// fallback verdict.
func (c *MediaClassifier) Classify(ctx context.Context, data []byte, kind MediaKind, mimeType string) MediaVerdict {
	if c.vision == nil || len(data) == 0 {
		return MediaVerdict{}
	}
	hash := HashMedia(data)
	if verdict, ok := c.cache.Get(hash); ok {
		return verdict
	}

	// Callers joining the flight share its result, so the first caller's
	// cancellation must not decide it. classify applies c.timeout.
	v, _, _ := c.group.Do(hash, func() (any, error) {
		verdict, cacheable := c.classify(context.WithoutCancel(ctx), data, kind, mimeType)
		if cacheable {
			c.cache.Add(hash, verdict)
		}
		return verdict, nil
	})
	return v.(MediaVerdict)
}

func (c *MediaClassifier) classify(ctx context.Context, data []byte, kind MediaKind, mimeType string) (MediaVerdict, bool) {
	entry := c.logger.WithFields(log.Fields{"kind": kind, "mime": mimeType, "size": len(data)})
	ctx, span := observability.StartSpan(ctx, "classifier.media")
	defer span.End()
	span.SetAttributes(attribute.String("media.kind", string(kind)), attribute.Int("media.size", len(data)))

	started := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := imagePrompt
	if kind == MediaVideo {
		prompt = videoPrompt
	}

	answer, err := c.vision.DescribeMedia(callCtx, data, mimeType, prompt)
	switch {
	case errors.Is(err, perrors.ErrContentBlocked):
		observability.ObserveClassification("media", "blocked", started)
		entry.Info("media blocked by safety filter, treating as severe")
		return MediaVerdict{IsBad: true, Severity: SeveritySevere, Reason: ReasonSafetyBlocked}, true
	case err != nil:
		observability.ObserveClassification("media", "error", started)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		entry.WithError(err).Warn("media classification failed")
		return c.fallback(), false
	}

	var verdict MediaVerdict
	if err := decodeAnswer(answer, &verdict); err != nil {
		observability.ObserveClassification("media", "malformed", started)
		entry.WithError(err).WithField("answer", answer).Warn("malformed media verdict")
		return c.fallback(), false
	}
	observability.ObserveClassification("media", "ok", started)
	return normalizeMediaVerdict(verdict), true
}

func (c *MediaClassifier) fallback() MediaVerdict {
	if c.failClosed {
		return MediaVerdict{IsBad: true, Severity: SeverityUnverified, Reason: ReasonUnverified}
	}
	return MediaVerdict{}
}

func normalizeMediaVerdict(v MediaVerdict) MediaVerdict {
	if !v.IsBad {
		return MediaVerdict{Reason: v.Reason}
	}
	v.Severity = Severity(strings.ToUpper(strings.TrimSpace(string(v.Severity))))
	if v.Severity != SeveritySevere {
		v.Severity = SeverityMedium
	}
	if strings.TrimSpace(v.Reason) == "" {
		v.Reason = "Inappropriate content"
	}
	return v
}
