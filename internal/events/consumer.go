package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/store"
)

// Enqueuer schedules enrichment work.
type Enqueuer interface {
	Enqueue(ctx context.Context, profileID string, priority int) (*model.QueueItem, error)
	EnqueueWord(ctx context.Context, word string, priority int) (*model.QueueItem, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer turns enrich-requested events into queue items.
type Consumer struct {
	reader   messageReader
	enqueuer Enqueuer
	log      *zap.Logger
}

// NewConsumer creates a consumer of cfg.RequestTopic in group cfg.GroupID.
func NewConsumer(cfg config.KafkaConfig, enq Enqueuer) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, eris.New("events: no kafka brokers configured")
	}
	if cfg.RequestTopic == "" {
		return nil, eris.New("events: no request topic configured")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.RequestTopic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, enq, cfg.RequestTopic), nil
}

func newConsumer(r messageReader, enq Enqueuer, topic string) *Consumer {
	return &Consumer{
		reader:   r,
		enqueuer: enq,
		log:      zap.L().With(zap.String("component", "events"), zap.String("topic", topic)),
	}
}

// Run fetches and handles messages until ctx is cancelled. Requests that can
// never be enqueued are committed and dropped; other failures are left
// uncommitted so they are redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("events: consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("events: consumer stopping")
				return nil
			}
			c.log.Error("events: fetch message failed", zap.Error(err))
			continue
		}

		if err := c.Handle(ctx, msg.Value); err != nil {
			if IsMalformed(err) {
				c.log.Warn("events: dropping malformed request",
					zap.Int64("offset", msg.Offset), zap.Error(err))
			} else {
				c.log.Error("events: handle request failed",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("events: commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// malformedError marks a request that can never succeed.
type malformedError struct{ msg string }

func (e *malformedError) Error() string { return "events: malformed request: " + e.msg }

// IsMalformed reports whether err came from a request that can never be
// enqueued.
func IsMalformed(err error) bool {
	var m *malformedError
	return errors.As(err, &m)
}

// Handle decodes one enrich-requested event and enqueues it. A request
// naming a profile id wins over one naming a word.
func (c *Consumer) Handle(ctx context.Context, value []byte) error {
	var req EnrichRequested
	if err := json.Unmarshal(value, &req); err != nil {
		return &malformedError{msg: err.Error()}
	}
	req.WordProfileID = strings.TrimSpace(req.WordProfileID)
	req.Word = strings.TrimSpace(req.Word)

	var (
		item *model.QueueItem
		err  error
	)
	switch {
	case req.WordProfileID != "":
		item, err = c.enqueuer.Enqueue(ctx, req.WordProfileID, req.Priority)
	case req.Word != "":
		item, err = c.enqueuer.EnqueueWord(ctx, req.Word, req.Priority)
	default:
		return &malformedError{msg: "neither word_profile_id nor word set"}
	}
	if store.IsNotFound(err) {
		return &malformedError{msg: "unknown word_profile_id " + req.WordProfileID}
	}
	if err != nil {
		return eris.Wrap(err, "events: enqueue request")
	}
	c.log.Info("events: enrichment requested",
		zap.String("item_id", item.ID),
		zap.String("word_profile_id", item.WordProfileID),
		zap.Int("priority", item.Priority))
	return nil
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return eris.Wrap(c.reader.Close(), "events: close consumer")
}
