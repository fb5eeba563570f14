// Package events publishes profile updates to Kafka and consumes
// enrichment requests from it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

// ProfileUpdated is published after every profile write.
type ProfileUpdated struct {
	Word         string    `json:"word"`
	ID           string    `json:"id"`
	QualityScore int       `json:"quality_score"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EnrichRequested asks for a profile, or a word, to be enqueued.
type EnrichRequested struct {
	WordProfileID string `json:"word_profile_id,omitempty"`
	Word          string `json:"word,omitempty"`
	Priority      int    `json:"priority,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON events to the profile-updated topic.
type Producer struct {
	writer messageWriter
	topic  string
	log    *zap.Logger
}

// NewProducer creates a producer for cfg.UpdatedTopic.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, eris.New("events: no kafka brokers configured")
	}
	if cfg.UpdatedTopic == "" {
		return nil, eris.New("events: no updated topic configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.UpdatedTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, cfg.UpdatedTopic), nil
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		log:    zap.L().With(zap.String("component", "events"), zap.String("topic", topic)),
	}
}

// PublishProfileUpdated announces a profile write. The word is the message
// key so updates to one word stay ordered.
func (p *Producer) PublishProfileUpdated(ctx context.Context, wp *model.WordProfile) error {
	ev := ProfileUpdated{
		Word:         wp.Word,
		ID:           wp.ID,
		QualityScore: wp.QualityScore,
		UpdatedAt:    wp.UpdatedAt,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "events: marshal profile updated")
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(wp.Word), Value: value}); err != nil {
		return eris.Wrapf(err, "events: publish %s", wp.Word)
	}
	p.log.Debug("events: profile update published", zap.String("word", wp.Word), zap.Int("score", wp.QualityScore))
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return eris.Wrap(p.writer.Close(), "events: close producer")
}
