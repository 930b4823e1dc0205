package llm

import "context"

// FakeClient is a scriptable Client used by tests throughout this
// module that need an LLM collaborator without a live gRPC channel.
type FakeClient struct {
	// Responses is consumed in order, one per Generate call. When
	// exhausted, Generate returns an ErrorChunk.
	Responses []string
	Err       error
	calls     int
}

func (f *FakeClient) Generate(ctx context.Context, req *Request) (<-chan Chunk, error) {
	ch := make(chan Chunk, 1)
	if f.Err != nil {
		go func() {
			defer close(ch)
			ch <- &ErrorChunk{Message: f.Err.Error(), Code: "FAKE_ERROR"}
		}()
		return ch, nil
	}
	idx := f.calls
	f.calls++
	go func() {
		defer close(ch)
		if idx >= len(f.Responses) {
			ch <- &ErrorChunk{Message: "no scripted response", Code: "FAKE_EXHAUSTED"}
			return
		}
		ch <- &TextChunk{JSON: f.Responses[idx]}
	}()
	return ch, nil
}

func (f *FakeClient) Close() error { return nil }

// Collect drains a chunk channel into a single JSON string (from the
// last TextChunk received) and an error (from the first ErrorChunk).
func Collect(ch <-chan Chunk) (string, error) {
	var json string
	for c := range ch {
		switch v := c.(type) {
		case *TextChunk:
			json = v.JSON
		case *ErrorChunk:
			return "", &collectedError{v}
		}
	}
	return json, nil
}

type collectedError struct{ chunk *ErrorChunk }

func (e *collectedError) Error() string { return e.chunk.Message }
