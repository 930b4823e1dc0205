// Package assistant implements the Assistant SSE Streamer:
// narration over a Server-Sent Events connection, poll-on-job-store for
// the search path, and a single LLM call to produce the final summary.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
	"github.com/shacharon/pizza-sub006/pkg/llm"
)

// Writer is the narrow slice of http.ResponseWriter the streamer needs:
// a place to write SSE frames and a way to flush them. Client disconnect
// is detected through the ctx passed to HandleRequest.
type Writer interface {
	io.Writer
	Flush()
}

// Streamer drives one Assistant SSE connection.
type Streamer struct {
	Store         jobstore.Store
	LLM           llm.Client
	PollInterval  time.Duration
	Timeout       time.Duration
	NarrationFunc func(language string) string      // deterministic, no LLM
	TimeoutFunc   func(language string) string      // localized timeout template
}

// HandleRequest checks that the job is owned by sessionID, then streams
// meta -> (message|poll loop) -> done. A job that cannot be found ends
// the stream with an error NOT_FOUND frame; a job owned by another
// session ends it with an error FORBIDDEN frame.
func (s *Streamer) HandleRequest(ctx context.Context, w Writer, requestID, sessionID string) {
	job, err := s.Store.GetJob(ctx, requestID)
	if err != nil {
		slog.Warn("assistant: job store unavailable for ownership check, proceeding", "error", err)
	}
	if job == nil {
		writeEvent(w, "error", map[string]string{"code": "NOT_FOUND"})
		writeEvent(w, "done", map[string]string{})
		return
	}
	if job.OwnerSessionID != sessionID {
		writeEvent(w, "error", map[string]string{"code": "FORBIDDEN"})
		writeEvent(w, "done", map[string]string{})
		return
	}

	language := job.Request.LanguageHint
	writeEvent(w, "meta", map[string]interface{}{
		"requestId": requestID,
		"language":  language,
		"startedAt": job.CreatedAt,
	})

	if job.Status == jobstore.StatusDoneClarify || job.Status == jobstore.StatusDoneStopped {
		s.streamClarifyOrStopped(ctx, w, job, language)
		return
	}

	s.streamSearch(ctx, w, requestID, language)
}

func (s *Streamer) streamClarifyOrStopped(ctx context.Context, w Writer, job *jobstore.Job, language string) {
	prompt := ""
	if job.Assist != nil {
		prompt = job.Assist.Message
	}
	msg, err := s.generate(ctx, llm.StageAssistantMessage, language, prompt)
	if err != nil {
		writeEvent(w, "error", map[string]string{"code": "LLM_ERROR"})
		writeEvent(w, "done", map[string]string{})
		return
	}
	writeEvent(w, "message", map[string]string{"text": msg})
	writeEvent(w, "done", map[string]string{})
}

func (s *Streamer) streamSearch(ctx context.Context, w Writer, requestID, language string) {
	narration := "Searching..."
	if s.NarrationFunc != nil {
		narration = s.NarrationFunc(language)
	}
	writeEvent(w, "message", map[string]string{"text": narration})

	pollInterval := s.PollInterval
	if pollInterval == 0 {
		pollInterval = 400 * time.Millisecond
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return // client disconnected: stop silently
		case <-ticker.C:
			job, err := s.Store.GetJob(ctx, requestID)
			if err != nil || job == nil {
				continue
			}
			if job.Status == jobstore.StatusDoneSuccess {
				s.streamSummary(ctx, w, job, language)
				return
			}
			if job.Status.Terminal() {
				writeEvent(w, "error", map[string]string{"code": string(job.Status)})
				writeEvent(w, "done", map[string]string{})
				return
			}
			if time.Now().After(deadline) {
				text := "Search is taking longer than expected."
				if s.TimeoutFunc != nil {
					text = s.TimeoutFunc(language)
				}
				writeEvent(w, "message", map[string]string{"text": text})
				writeEvent(w, "done", map[string]string{})
				return
			}
		}
	}
}

func (s *Streamer) streamSummary(ctx context.Context, w Writer, job *jobstore.Job, language string) {
	names := topNames(job.Result, 3)
	ctxJSON, _ := json.Marshal(map[string]interface{}{"topResults": names})

	msg, err := s.generateWithContext(ctx, llm.StageAssistantMessage, language, "SUMMARY", string(ctxJSON))
	if err != nil {
		writeEvent(w, "error", map[string]string{"code": "LLM_ERROR"})
		writeEvent(w, "done", map[string]string{})
		return
	}
	writeEvent(w, "message", map[string]string{"text": msg})
	writeEvent(w, "done", map[string]string{})
}

func topNames(bundle *jobstore.ResultBundle, n int) []string {
	if bundle == nil {
		return nil
	}
	out := make([]string, 0, n)
	for i, item := range bundle.Results {
		if i >= n {
			break
		}
		out = append(out, item.Name)
	}
	return out
}

func (s *Streamer) generate(ctx context.Context, stage llm.StageName, language, prompt string) (string, error) {
	return s.generateWithContext(ctx, stage, language, prompt, "")
}

func (s *Streamer) generateWithContext(ctx context.Context, stage llm.StageName, language, prompt, contextJSON string) (string, error) {
	ch, err := s.LLM.Generate(ctx, &llm.Request{
		Stage:       stage,
		Language:    language,
		Prompt:      prompt,
		ContextJSON: contextJSON,
	})
	if err != nil {
		return "", err
	}
	return llm.Collect(ch)
}

// writeEvent writes one SSE frame: "event: X\ndata: <json>\n\n".
func writeEvent(w Writer, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	w.Flush()
}
