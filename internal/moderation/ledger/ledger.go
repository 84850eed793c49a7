package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/prime/internal/db"
	"github.com/iamwavecut/prime/internal/infra"
	"github.com/iamwavecut/prime/internal/moderation/classifier"
)

// Store persists warning records.
type Store interface {
	GetWarnings(ctx context.Context, userID string) (*db.WarningRecord, error)
	SaveWarnings(ctx context.Context, record *db.WarningRecord) error
}

type Options struct {
	SpamWindow  time.Duration
	MediaWindow time.Duration
	TrackerSize int
	// RecordCacheSize bounds the warning records kept in memory.
	RecordCacheSize int

	VibeWindow   time.Duration
	VibeCooldown time.Duration
	VibeHistory  int

	Now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.SpamWindow <= 0 {
		o.SpamWindow = 5 * time.Minute
	}
	if o.MediaWindow <= 0 {
		o.MediaWindow = time.Hour
	}
	if o.TrackerSize <= 0 {
		o.TrackerSize = 10000
	}
	if o.RecordCacheSize <= 0 {
		o.RecordCacheSize = 10000
	}
	if o.VibeWindow <= 0 {
		o.VibeWindow = 15 * time.Second
	}
	if o.VibeCooldown <= 0 {
		o.VibeCooldown = 3 * time.Minute
	}
	if o.VibeHistory <= 0 {
		o.VibeHistory = 20
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

var storeRetryOptions = infra.RetryOptions{
	MaxElapsedTime:  2 * time.Second,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     500 * time.Millisecond,
	MaxRetries:      2,
}

type spamBurst struct {
	count int
	last  time.Time
}

type mediaBurst struct {
	count    int
	lastSeen time.Time
	users    map[string]struct{}
}

type channelActivity struct {
	lines     []classifier.ChatLine
	lastCheck time.Time
}

// MediaBurst is the state of one content hash after a sighting.
type MediaBurst struct {
	Count int
	Users int
}

// Suspicious reports a mass-posting pattern: five sightings, or three
// sightings from at least two users.
func (b MediaBurst) Suspicious() bool {
	return b.Count >= 5 || (b.Count >= 3 && b.Users >= 2)
}

// Ledger keeps the durable warning counters and the short-lived burst
// trackers. Records that match storage live in a bounded cache and are
// reloaded after eviction. Records storage has not caught up with are held
// until a save succeeds.
type Ledger struct {
	store  Store
	opts   Options
	logger *log.Entry

	userLocks *keyedMutex
	recordsMu sync.Mutex
	records   *lru.Cache[string, *db.WarningRecord]
	unsynced  map[string]*warnings

	trackMu  sync.Mutex
	spam     *expirable.LRU[string, *spamBurst]
	media    *expirable.LRU[string, *mediaBurst]
	channels *expirable.LRU[string, *channelActivity]
}

// warnings is a record in flight. An unloaded record holds only the
// warnings recorded while storage could not be read.
type warnings struct {
	record *db.WarningRecord
	loaded bool
}

func New(store Store, opts Options) *Ledger {
	opts.applyDefaults()
	records, err := lru.New[string, *db.WarningRecord](opts.RecordCacheSize)
	if err != nil {
		panic(err)
	}
	return &Ledger{
		store:     store,
		opts:      opts,
		logger:    log.WithField("object", "Ledger"),
		userLocks: newKeyedMutex(),
		records:   records,
		unsynced:  make(map[string]*warnings),
		spam:      expirable.NewLRU[string, *spamBurst](opts.TrackerSize, nil, opts.SpamWindow),
		media:     expirable.NewLRU[string, *mediaBurst](opts.TrackerSize, nil, opts.MediaWindow),
		channels:  expirable.NewLRU[string, *channelActivity](opts.TrackerSize, nil, opts.VibeCooldown+opts.VibeWindow),
	}
}

// RecordWarning appends a warning and returns the new count. The count is
// valid even when a storage error is returned. When storage cannot be read
// the count covers only the warnings recorded since; they are merged into
// the stored record on the next successful read.
func (l *Ledger) RecordWarning(ctx context.Context, userID, reason string) (int, error) {
	unlock := l.userLocks.Lock(userID)
	defer unlock()

	now := l.opts.Now()
	w, loadErr := l.load(ctx, userID)
	w.record.Count++
	w.record.History = append(w.record.History, db.WarningEntry{Reason: reason, At: now})
	w.record.UpdatedAt = now

	if !w.loaded {
		l.hold(w)
		return w.record.Count, fmt.Errorf("load warnings: %w", loadErr)
	}
	return w.record.Count, l.commit(ctx, w)
}

// RemoveLastWarning pops the newest warning. The count never drops below
// zero. Nothing is removed while storage cannot be read.
func (l *Ledger) RemoveLastWarning(ctx context.Context, userID string) (int, error) {
	unlock := l.userLocks.Lock(userID)
	defer unlock()

	w, err := l.load(ctx, userID)
	if !w.loaded {
		return w.record.Count, fmt.Errorf("load warnings: %w", err)
	}
	record := w.record
	if record.Count == 0 && len(record.History) == 0 {
		return 0, nil
	}
	if record.Count > 0 {
		record.Count--
	}
	if n := len(record.History); n > 0 {
		record.History = record.History[:n-1]
	}
	record.UpdatedAt = l.opts.Now()

	return record.Count, l.commit(ctx, w)
}

// Warnings returns a copy of the user's record, zero-valued when unknown.
func (l *Ledger) Warnings(ctx context.Context, userID string) *db.WarningRecord {
	unlock := l.userLocks.Lock(userID)
	defer unlock()

	w, _ := l.load(ctx, userID)
	return w.record.Clone()
}

// load must be called with the user lock held.
func (l *Ledger) load(ctx context.Context, userID string) (*warnings, error) {
	l.recordsMu.Lock()
	pending, held := l.unsynced[userID]
	l.recordsMu.Unlock()
	if held && pending.loaded {
		return pending, nil
	}
	if !held {
		if record, ok := l.records.Get(userID); ok {
			return &warnings{record: record, loaded: true}, nil
		}
	}

	if l.store == nil {
		return &warnings{record: &db.WarningRecord{UserID: userID}, loaded: true}, nil
	}
	stored, err := infra.WithRetry(ctx, func() (*db.WarningRecord, error) {
		return l.store.GetWarnings(ctx, userID)
	}, storeRetryOptions)
	if err != nil {
		l.logger.WithError(err).WithField("user_id", userID).Warn("cant load warnings")
		if held {
			return pending, err
		}
		return &warnings{record: &db.WarningRecord{UserID: userID}}, err
	}

	record := stored
	if record == nil {
		record = &db.WarningRecord{UserID: userID}
	}
	if held {
		record.Count += pending.record.Count
		record.History = append(record.History, pending.record.History...)
		if pending.record.UpdatedAt.After(record.UpdatedAt) {
			record.UpdatedAt = pending.record.UpdatedAt
		}
		return &warnings{record: record, loaded: true}, nil
	}
	l.records.Add(userID, record)
	return &warnings{record: record, loaded: true}, nil
}

func (l *Ledger) hold(w *warnings) {
	l.recordsMu.Lock()
	l.unsynced[w.record.UserID] = w
	l.recordsMu.Unlock()
	l.records.Remove(w.record.UserID)
}

// commit saves a loaded record. A record that fails to save stays held so
// the in-memory count stays authoritative.
func (l *Ledger) commit(ctx context.Context, w *warnings) error {
	if l.store != nil {
		if err := l.store.SaveWarnings(ctx, w.record.Clone()); err != nil {
			l.logger.WithError(err).WithFields(log.Fields{
				"user_id": w.record.UserID,
				"count":   w.record.Count,
			}).Error("cant persist warnings")
			l.hold(w)
			return fmt.Errorf("persist warnings: %w", err)
		}
	}
	l.recordsMu.Lock()
	delete(l.unsynced, w.record.UserID)
	l.recordsMu.Unlock()
	l.records.Add(w.record.UserID, w.record)
	return nil
}

// RecordSpam counts a spam detection inside the burst window and returns the
// strike number.
func (l *Ledger) RecordSpam(userID string) int {
	l.trackMu.Lock()
	defer l.trackMu.Unlock()

	now := l.opts.Now()
	burst, ok := l.spam.Get(userID)
	if !ok || now.Sub(burst.last) > l.opts.SpamWindow {
		burst = &spamBurst{}
	}
	burst.count++
	burst.last = now
	l.spam.Add(userID, burst)
	return burst.count
}

func (l *Ledger) ResetSpam(userID string) {
	l.trackMu.Lock()
	defer l.trackMu.Unlock()

	l.spam.Remove(userID)
}

// RecordMediaHash counts a sighting of identical media.
func (l *Ledger) RecordMediaHash(hash, userID string) MediaBurst {
	l.trackMu.Lock()
	defer l.trackMu.Unlock()

	now := l.opts.Now()
	burst, ok := l.media.Get(hash)
	if !ok || now.Sub(burst.lastSeen) > l.opts.MediaWindow {
		burst = &mediaBurst{users: make(map[string]struct{})}
	}
	burst.count++
	burst.lastSeen = now
	burst.users[userID] = struct{}{}
	l.media.Add(hash, burst)
	return MediaBurst{Count: burst.count, Users: len(burst.users)}
}

// RecordChannelMessage appends a line to the channel transcript and returns
// how many messages arrived inside the burst window together with a copy of
// the transcript.
func (l *Ledger) RecordChannelMessage(channelID string, line classifier.ChatLine) (int, []classifier.ChatLine) {
	l.trackMu.Lock()
	defer l.trackMu.Unlock()

	now := l.opts.Now()
	if line.At.IsZero() {
		line.At = now
	}
	activity, ok := l.channels.Get(channelID)
	if !ok {
		activity = &channelActivity{}
	}
	activity.lines = append(activity.lines, line)
	if extra := len(activity.lines) - l.opts.VibeHistory; extra > 0 {
		activity.lines = append(activity.lines[:0:0], activity.lines[extra:]...)
	}
	l.channels.Add(channelID, activity)

	burst := 0
	since := now.Add(-l.opts.VibeWindow)
	for _, recorded := range activity.lines {
		if !recorded.At.Before(since) {
			burst++
		}
	}
	return burst, append([]classifier.ChatLine(nil), activity.lines...)
}

// ClaimVibeCheck reserves the channel for a vibe check. Unless forced, a
// channel is checked at most once per cooldown.
func (l *Ledger) ClaimVibeCheck(channelID string, forced bool) bool {
	l.trackMu.Lock()
	defer l.trackMu.Unlock()

	now := l.opts.Now()
	activity, ok := l.channels.Get(channelID)
	if !ok {
		activity = &channelActivity{}
	}
	if !forced && !activity.lastCheck.IsZero() && now.Sub(activity.lastCheck) < l.opts.VibeCooldown {
		return false
	}
	activity.lastCheck = now
	l.channels.Add(channelID, activity)
	return true
}
