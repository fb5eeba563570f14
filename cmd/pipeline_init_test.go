package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lexicon-cli/internal/config"
)

func loadTestConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	c, err := config.LoadFile(path)
	require.NoError(t, err)
	return c
}

func TestPipelineEnv_Close_Nil(t *testing.T) {
	pe := &pipelineEnv{}
	assert.NotPanics(t, func() {
		pe.Close()
	})
}

func TestInitPipeline_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "lexicon.db")
	cfg = loadTestConfig(t, "store:\n  driver: sqlite\n  database_url: "+dsn+"\nsources:\n  enabled: [wiktionary, datamuse]\n")

	env, err := initPipeline(context.Background(), "enrich")
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	require.NotNil(t, env.Pipeline)
	require.NotNil(t, env.Metrics)

	stats, err := env.Pipeline.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	found, err := env.Pipeline.Search(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestInitPipeline_FailsValidation(t *testing.T) {
	cfg = &config.Config{}

	env, err := initPipeline(context.Background(), "enrich")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestInitPipeline_UnknownSource(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "lexicon.db")
	cfg = loadTestConfig(t, "store:\n  database_url: "+dsn+"\nsources:\n  enabled: [thesaurus]\n")

	env, err := initPipeline(context.Background(), "enrich")
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestInitPipeline_ServeModeNeedsPort(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "lexicon.db")
	cfg = loadTestConfig(t, "store:\n  database_url: "+dsn+"\nserver:\n  port: 0\n")

	_, err := initPipeline(context.Background(), "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}
