package event

import (
	"sync/atomic"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
)

const DefaultQueueSize = 1024

// Bus is a bounded queue of action records. Publishing never blocks: when the
// queue is full the record is dropped and counted.
type Bus struct {
	q       chan Record
	dropped atomic.Int64
	now     func() time.Time
	logger  *log.Entry
}

func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Bus{
		q:      make(chan Record, size),
		now:    time.Now,
		logger: log.WithField("object", "EventBus"),
	}
}

func (b *Bus) Publish(record Record) {
	if record.ID == "" {
		record.ID = uuid.New()
	}
	if record.At.IsZero() {
		record.At = b.now()
	}
	select {
	case b.q <- record:
	default:
		dropped := b.dropped.Add(1)
		b.logger.WithFields(log.Fields{
			"action":  record.Action,
			"user_id": record.UserID,
			"dropped": dropped,
		}).Warn("event queue is full, dropping record")
	}
}

// Dropped returns how many records were lost to a full queue.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) pop() (Record, bool) {
	select {
	case r := <-b.q:
		return r, true
	default:
		return Record{}, false
	}
}
