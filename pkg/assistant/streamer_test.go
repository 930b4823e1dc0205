package assistant

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/llm"
)

type bufWriter struct{ bytes.Buffer }

func (b *bufWriter) Flush() {}

func TestStreamer_ClarifyJobSendsMessageThenDone(t *testing.T) {
	store := jobstore.NewMemory(jobstore.DefaultConfig(), nil)
	job, _, err := store.CreateOrGet(context.Background(), jobstore.RequestPayload{Query: "pizza"}, "idem-1", jobstore.Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, store.SetAssist(context.Background(), job.RequestID, jobstore.StatusDoneClarify, jobstore.AssistPayload{Kind: "clarify", Message: "where?"}))

	s := &Streamer{Store: store, LLM: &llm.FakeClient{Responses: []string{"Could you tell me the city?"}}}
	w := &bufWriter{}
	s.HandleRequest(context.Background(), w, job.RequestID, "s1")

	out := w.String()
	require.Contains(t, out, "event: meta")
	require.Contains(t, out, "event: message")
	require.Contains(t, out, "event: done")
}

func TestStreamer_SearchPathPollsUntilSuccess(t *testing.T) {
	store := jobstore.NewMemory(jobstore.DefaultConfig(), nil)
	job, _, err := store.CreateOrGet(context.Background(), jobstore.RequestPayload{Query: "pizza"}, "idem-2", jobstore.Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(context.Background(), job.RequestID, jobstore.StatusRunning, nil))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.SetResult(context.Background(), job.RequestID, jobstore.ResultBundle{
			Results: []jobstore.ResultItem{{PlaceID: "p1", Name: "Pizza Place"}},
		})
	}()

	s := &Streamer{
		Store:        store,
		LLM:          &llm.FakeClient{Responses: []string{"Here are your results."}},
		PollInterval: 5 * time.Millisecond,
		Timeout:      2 * time.Second,
	}
	w := &bufWriter{}
	s.HandleRequest(context.Background(), w, job.RequestID, "s1")

	out := w.String()
	require.True(t, strings.Contains(out, "Here are your results."))
	require.Contains(t, out, "event: done")
}

func TestStreamer_ClientDisconnectStopsSilently(t *testing.T) {
	store := jobstore.NewMemory(jobstore.DefaultConfig(), nil)
	job, _, err := store.CreateOrGet(context.Background(), jobstore.RequestPayload{Query: "pizza"}, "idem-3", jobstore.Identity{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(context.Background(), job.RequestID, jobstore.StatusRunning, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Streamer{Store: store, LLM: &llm.FakeClient{}, PollInterval: 5 * time.Millisecond, Timeout: time.Second}
	w := &bufWriter{}
	s.HandleRequest(ctx, w, job.RequestID, "s1")

	require.NotContains(t, w.String(), "event: error")
}
