// Package enhance asks an Anthropic model to fill the fields that no
// lexical source could supply, and turns the answer into a source record.
package enhance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/fusion"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/pkg/anthropic"
)

// SourceName is the source name of AI-generated records.
const SourceName = "ai"

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 2048
	defaultWeight    = 0.70
	callTimeout      = 60 * time.Second
)

// Enhancer fills missing profile fields with an Anthropic model.
type Enhancer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	weight    float64
	now       func() time.Time
	log       *zap.Logger
}

// New creates an Enhancer. Zero config values fall back to defaults.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Enhancer {
	e := &Enhancer{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		weight:    cfg.Weight,
		now:       time.Now,
		log:       zap.L().With(zap.String("component", "enhance")),
	}
	if e.model == "" {
		e.model = defaultModel
	}
	if e.maxTokens <= 0 {
		e.maxTokens = defaultMaxTokens
	}
	if e.weight <= 0 || e.weight > 1 {
		e.weight = defaultWeight
	}
	return e
}

// Weight returns the confidence given to AI records.
func (e *Enhancer) Weight() float64 {
	return e.weight
}

// Enhance asks for the given missing fields of p. It returns nil when there
// is nothing to ask for, the call fails, or the answer holds none of the
// requested fields. Only requested fields are kept.
func (e *Enhancer) Enhance(ctx context.Context, p *model.WordProfile, missing []string) *model.SourceRecord {
	if e == nil || e.client == nil || p == nil || len(missing) == 0 {
		return nil
	}
	log := e.log.With(zap.String("word", p.Word))

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := e.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: buildUserPrompt(p, missing)}},
	})
	if err != nil {
		log.Warn("enhance: create message failed", zap.Error(err))
		return nil
	}
	resp.Usage.LogCost(e.model, p.Word)

	data, ok := parseResponse(resp.Text())
	if !ok {
		log.Debug("enhance: no usable fields in response")
		return nil
	}
	kept := fusion.KeepFields(data.Clean(), missing)
	if isEmpty(kept) {
		log.Debug("enhance: response held none of the requested fields")
		return nil
	}

	return &model.SourceRecord{
		SourceName: SourceName,
		Confidence: e.weight,
		Word:       p.Word,
		Data:       kept,
		FetchedAt:  e.now().UTC(),
	}
}
