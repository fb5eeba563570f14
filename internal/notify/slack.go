// Package notify alerts a Slack channel about queue items that failed
// permanently.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

// ProfileLookup resolves the word of a failed item.
type ProfileLookup interface {
	GetProfileByID(ctx context.Context, id string) (*model.WordProfile, error)
}

// Slack posts failed-item alerts to an incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	profiles   ProfileLookup
	log        *zap.Logger
}

// NewSlack creates a Slack notifier. profiles may be nil, in which case
// alerts name the profile id only.
func NewSlack(cfg config.SlackConfig, profiles ProfileLookup) (*Slack, error) {
	if cfg.WebhookURL == "" {
		return nil, eris.New("notify: slack webhook url is required")
	}
	return &Slack{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		profiles:   profiles,
		log:        zap.L().With(zap.String("component", "notify")),
	}, nil
}

// NotifyFailed posts one alert for item.
func (s *Slack) NotifyFailed(ctx context.Context, item *model.QueueItem) error {
	word := s.word(ctx, item.WordProfileID)
	if err := slack.PostWebhookContext(ctx, s.webhookURL, s.message(item, word)); err != nil {
		return eris.Wrapf(err, "notify: post failed item %s", item.ID)
	}
	s.log.Info("notify: failed item reported", zap.String("item_id", item.ID), zap.String("word", word))
	return nil
}

func (s *Slack) word(ctx context.Context, profileID string) string {
	if s.profiles == nil {
		return ""
	}
	p, err := s.profiles.GetProfileByID(ctx, profileID)
	if err != nil {
		s.log.Debug("notify: profile lookup failed", zap.String("word_profile_id", profileID), zap.Error(err))
		return ""
	}
	return p.Word
}

func (s *Slack) message(item *model.QueueItem, word string) *slack.WebhookMessage {
	subject := item.WordProfileID
	if word != "" {
		subject = word
	}
	fields := []slack.AttachmentField{
		{Title: "Item", Value: item.ID, Short: true},
		{Title: "Profile", Value: item.WordProfileID, Short: true},
		{Title: "Attempts", Value: strconv.Itoa(item.RetryCount) + "/" + strconv.Itoa(item.MaxRetries), Short: true},
		{Title: "Priority", Value: strconv.Itoa(item.Priority), Short: true},
	}
	if item.ErrorMessage != "" {
		fields = append(fields, slack.AttachmentField{Title: "Error", Value: item.ErrorMessage})
	}
	return &slack.WebhookMessage{
		Channel: s.channel,
		Text:    fmt.Sprintf(":warning: Enrichment of *%s* failed permanently", subject),
		Attachments: []slack.Attachment{{
			Color:  "danger",
			Fields: fields,
		}},
	}
}
