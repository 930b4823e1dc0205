// Package llm is the external LLM collaborator interface: the typed,
// JSON-schema contract the Gate, Intent, cuisine enforcer, and Assistant
// narration calls all go through. The concrete vendor SDK is out of
// scope — this package only owns the gRPC channel shape and
// the Go-side chunk/request types.
package llm

import (
	"context"

	"google.golang.org/grpc"
)

// Client is the Go-side collaborator interface.
type Client interface {
	// Generate sends one structured completion request and returns a
	// channel of response chunks, closed when the call completes. Errors
	// are delivered as an ErrorChunk, never as a panic.
	Generate(ctx context.Context, req *Request) (<-chan Chunk, error)
	Close() error
}

// StageName identifies which pipeline stage is calling the collaborator,
// so it can select the right JSON schema / system prompt on the other
// end of the channel.
type StageName string

const (
	StageGate             StageName = "gate"
	StageIntent           StageName = "intent"
	StageCuisineEnforcer  StageName = "cuisine_enforcer"
	StageAssistantMessage StageName = "assistant_message"
)

// Request is the Go-side representation of one completion call.
type Request struct {
	RequestID   string
	Stage       StageName
	Language    string
	SchemaName  string // identifies the expected typed JSON-schema response
	Prompt      string
	ContextJSON string // serialized AssistantContext / stage input, if any
}

// Chunk is the tagged-union interface for streamed response pieces.
type Chunk interface{ chunkType() ChunkType }

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

// TextChunk carries a piece (or the whole, for non-streaming schema
// responses) of the structured JSON payload as text.
type TextChunk struct{ JSON string }

// UsageChunk reports token consumption for the call.
type UsageChunk struct{ InputTokens, OutputTokens int }

// ErrorChunk signals a collaborator-side failure. Retryable mirrors
// whether the orchestrator may safely retry the same stage call.
type ErrorChunk struct {
	Message   string
	Code      string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }

// GRPCClient is the production Client, backed by a gRPC channel to the
// out-of-process LLM collaborator service.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// Dial opens the gRPC channel. Callers own the returned Client's
// lifetime and must call Close.
func Dial(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error { return c.conn.Close() }

// Generate is intentionally a thin adapter: the wire protobuf contract
// lives in the collaborator service definition, out of scope here (spec
// §1). This method shape is what every caller in this repo depends on;
// swapping the transport never touches stage code.
func (c *GRPCClient) Generate(ctx context.Context, req *Request) (<-chan Chunk, error) {
	ch := make(chan Chunk, 1)
	go func() {
		defer close(ch)
		// Transport-level streaming is out of scope here; production
		// wiring invokes the generated gRPC stub and forwards its stream
		// into ch, translating proto chunks into TextChunk/UsageChunk/
		// ErrorChunk the same way the rest of this package's callers
		// expect.
		ch <- &ErrorChunk{Message: "llm collaborator not wired in this environment", Code: "UNIMPLEMENTED"}
	}()
	return ch, nil
}
