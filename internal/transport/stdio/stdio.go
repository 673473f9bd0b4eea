package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/toolbridge/odata-mcp/internal/constants"
	"github.com/toolbridge/odata-mcp/internal/transport"
)

// Transport implements line-delimited JSON-RPC over a pair of byte
// streams, stdin/stdout by default. Each inbound frame is dispatched on
// its own goroutine so the read loop keeps accepting while calls run;
// completing calls serialize their writes through a mutex so frames are
// never interleaved.
type Transport struct {
	reader  *bufio.Reader
	writer  io.Writer
	handler transport.Handler
	logger  *zap.Logger

	writeMu  sync.Mutex
	inflight sync.WaitGroup
}

// New creates a stdio transport bound to the process streams.
func New(handler transport.Handler, logger *zap.Logger) *Transport {
	return NewWithStreams(os.Stdin, os.Stdout, handler, logger)
}

// NewWithStreams creates a transport over arbitrary streams. Used by
// tests and by embedding hosts.
func NewWithStreams(r io.Reader, w io.Writer, handler transport.Handler, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		reader:  bufio.NewReader(r),
		writer:  w,
		handler: handler,
		logger:  logger,
	}
}

// Start runs the read loop until EOF, a read failure, or ctx
// cancellation. Malformed frames get a ParseError response; they never
// stop the loop. Only the inability to read the stream itself is fatal.
func (t *Transport) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.inflight.Wait()
			return ctx.Err()
		default:
		}

		line, err := t.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				t.inflight.Wait()
				return nil
			}
			return fmt.Errorf("transport read failed: %w", err)
		}

		var msg transport.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			t.logger.Debug("discarding unparseable frame", zap.Error(err))
			if werr := t.WriteMessage(parseErrorMessage()); werr != nil {
				return fmt.Errorf("transport write failed: %w", werr)
			}
			continue
		}

		t.inflight.Add(1)
		go func(m *transport.Message) {
			defer t.inflight.Done()
			resp := t.handler(ctx, m)
			if resp == nil {
				return // notification
			}
			if err := t.WriteMessage(resp); err != nil {
				t.logger.Error("failed to write response frame", zap.Error(err))
			}
		}(&msg)
	}
}

// WriteMessage serializes one frame to the output stream. Safe for
// concurrent use.
func (t *Transport) WriteMessage(msg *transport.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return err
	}
	_, err = t.writer.Write([]byte("\n"))
	return err
}

// Close waits for in-flight calls to drain. The process streams
// themselves are not owned by the transport.
func (t *Transport) Close() error {
	t.inflight.Wait()
	return nil
}

// parseErrorMessage is the fixed response for an unparseable frame: the
// request id is unknowable, so it is null.
func parseErrorMessage() *transport.Message {
	return &transport.Message{
		JSONRPC: "2.0",
		ID:      json.RawMessage("null"),
		Error: &transport.Error{
			Code:    constants.CodeParseError,
			Message: "Parse error",
		},
	}
}
