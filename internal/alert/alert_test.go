package alert

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennydoit/fin-trade-extract/pkg/types"
)

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Send(types.Alert{
		Level: types.AlertLevelWarning, Target: "time_series", Symbol: "AAPL",
		Message: "symbol suspended after 5 consecutive failures",
	}))
	require.NoError(t, sink.Send(types.Alert{
		Level: types.AlertLevelError, Target: "time_series",
		Message: "run aborted: error rate 0.62 exceeded threshold 0.50",
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []types.Alert
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var a types.Alert
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &a))
		lines = append(lines, a)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "AAPL", lines[0].Symbol)
	assert.Equal(t, types.AlertLevelError, lines[1].Level)
}

func TestWebhookSink(t *testing.T) {
	var got types.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	require.NoError(t, sink.Send(types.Alert{
		Level: types.AlertLevelWarning, Target: "earnings", Symbol: "MSFT", Message: "suspended",
	}))
	assert.Equal(t, "MSFT", got.Symbol)
}

func TestWebhookSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	err := sink.Send(types.Alert{Message: "x"})
	assert.ErrorContains(t, err, "500")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	name string
	sent []types.Alert
	fail bool
}

func (s *recordingSink) Name() string { return s.name }
func (s *recordingSink) Send(a types.Alert) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.sent = append(s.sent, a)
	return nil
}

func TestDispatcher_FanOutSurvivesSinkFailure(t *testing.T) {
	bad := &recordingSink{name: "bad", fail: true}
	good := &recordingSink{name: "good"}
	d := &Dispatcher{sinks: []Sink{bad, good}, logger: discardLogger()}

	d.Dispatch(types.Alert{Level: types.AlertLevelInfo, Message: "hello"})

	require.Len(t, good.sent, 1)
	assert.False(t, good.sent[0].Timestamp.IsZero(), "dispatch stamps missing timestamps")
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher([]types.AlertConfig{{Type: types.AlertWebhook}})
	assert.ErrorContains(t, err, "webhook URL required")

	_, err = NewDispatcher([]types.AlertConfig{{Type: "pager"}})
	assert.ErrorContains(t, err, "unknown alert type")

	d, err := NewDispatcher([]types.AlertConfig{{Type: types.AlertConsole}})
	require.NoError(t, err)
	require.NotNil(t, d.AlertFunc())
}
