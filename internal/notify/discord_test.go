package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buzzbot-go/internal/position"
)

func TestDisabledIsNoop(t *testing.T) {
	d := NewDiscord("", zerolog.Nop())
	assert.False(t, d.Enabled())
	assert.NoError(t, d.Send(context.Background(), LevelInfo, "hello"))
}

func TestExitedPostsContent(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscord(server.URL, zerolog.Nop())
	d.Exited(context.Background(), position.Trade{
		Asset: "PEPE", PnLPercent: 8, PnLUSD: 4, Partial: true, Reason: position.ReasonTakeProfit,
		SellTime: time.Now(),
	})

	assert.True(t, strings.HasPrefix(got["content"], "💰 PARTIAL SELL PEPE +8.0% ($+4.00) | take_profit"), got["content"])
}

func TestSendReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewDiscord(server.URL, zerolog.Nop()).Send(context.Background(), LevelWarning, "x")
	assert.Error(t, err)
}
