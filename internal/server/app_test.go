package server

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = parseLevel("loud")
	require.Error(t, err)
}

func newConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = ""
	c.HTTPAddr = "127.0.0.1:0"
	return c
}

func TestNewApp_InMemoryRunsAndStops(t *testing.T) {
	app, err := NewApp(context.Background(), newConfig())
	require.NoError(t, err)
	assert.Nil(t, app.db)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop after context cancel")
	}
}

func TestNewApp_Errors(t *testing.T) {
	c := newConfig()
	c.LogLevel = "loud"
	_, err := NewApp(context.Background(), c)
	require.Error(t, err)

	c = newConfig()
	c.TrustedProxies = []string{"not-an-ip"}
	_, err = NewApp(context.Background(), c)
	require.Error(t, err)
}
