// Package transport provides the stdio transport: newline-delimited JSON-RPC
// 2.0 over stdin/stdout.
//
// Framing contract: one JSON-RPC request per input line, exactly one JSON-RPC
// response per output line, flushed immediately, no embedded newlines. All
// diagnostics go to stderr; stray bytes on stdout corrupt the protocol
// stream.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/freshmart/catalog-mcp/internal/mcp"
)

// maxLine bounds a single request line (4 MB); enough for any tool call.
// Longer lines are answered with a parse error and discarded, the loop
// keeps serving.
const maxLine = 4 * 1024 * 1024

// Stdio reads line-delimited JSON-RPC requests from in, dispatches them
// strictly in arrival order, and writes one response line per request to out.
type Stdio struct {
	dispatcher *mcp.Dispatcher
	in         io.Reader
	out        io.Writer
	logger     zerolog.Logger
}

// NewStdio constructs a Stdio transport. The logger must not share out —
// pass one bound to stderr.
func NewStdio(dispatcher *mcp.Dispatcher, in io.Reader, out io.Writer, logger zerolog.Logger) *Stdio {
	return &Stdio{dispatcher: dispatcher, in: in, out: out, logger: logger}
}

// inbound is one unit of input: a request line, an oversize marker, or a
// terminal read error (io.EOF included).
type inbound struct {
	line    []byte
	tooLong bool
	err     error
}

// Serve processes requests until EOF or context cancellation. Blank lines are
// skipped; EOF terminates the loop gracefully. Reads run on their own
// goroutine so cancellation is honored even while blocked on stdin; responses
// are still written strictly in arrival order.
func (t *Stdio) Serve(ctx context.Context) error {
	inputs := make(chan inbound)
	go t.readLoop(ctx, inputs)

	for {
		// Cancellation wins over pending input.
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("stdio transport stopping: context cancelled")
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			t.logger.Info().Msg("stdio transport stopping: context cancelled")
			return ctx.Err()
		case msg := <-inputs:
			if msg.err != nil {
				if errors.Is(msg.err, io.EOF) {
					t.logger.Info().Msg("stdin closed, shutting down")
					return nil
				}
				t.logger.Error().Err(msg.err).Msg("stdin read failed")
				return fmt.Errorf("stdin read: %w", msg.err)
			}

			var resp []byte
			if msg.tooLong {
				t.logger.Warn().Int("limit_bytes", maxLine).Msg("request line over size limit, rejected")
				resp = oversizeResponse()
			} else {
				resp = t.dispatcher.HandleRequest(ctx, msg.line)
			}
			if err := t.writeLine(resp); err != nil {
				t.logger.Error().Err(err).Msg("stdout write failed")
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

// readLoop feeds input lines to the serve loop. A terminal error (including
// io.EOF) is delivered as its own message and ends the loop. The goroutine
// may stay blocked in a read after cancellation; the process is exiting then
// and stdin cannot be interrupted portably.
func (t *Stdio) readLoop(ctx context.Context, inputs chan<- inbound) {
	reader := bufio.NewReaderSize(t.in, 64*1024)
	for {
		line, tooLong, err := readLine(reader)
		if tooLong || len(line) > 0 {
			select {
			case inputs <- inbound{line: line, tooLong: tooLong}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case inputs <- inbound{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// readLine reads one newline-terminated line, enforcing maxLine. An oversized
// line is drained through its newline and reported with tooLong set so the
// caller can answer it instead of tearing the transport down. A trailing
// unterminated line at EOF is returned alongside io.EOF.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(buf)+len(chunk) > maxLine {
			return nil, true, drainLine(r, err)
		}
		buf = append(buf, chunk...)
		switch {
		case err == nil:
			return trimLine(buf), false, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return trimLine(buf), false, err
		}
	}
}

// drainLine discards the remainder of the current line. err is the read error
// from the chunk that overflowed; nil means its newline was already consumed.
func drainLine(r *bufio.Reader, err error) error {
	for errors.Is(err, bufio.ErrBufferFull) {
		_, err = r.ReadSlice('\n')
	}
	return err
}

func trimLine(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

// oversizeResponse is the parse-error frame for a rejected oversized line.
func oversizeResponse() []byte {
	resp := mcp.Response{
		JSONRPC: "2.0",
		Error: &mcp.Error{
			Code:    mcp.CodeParseError,
			Message: fmt.Sprintf("Parse error: request line exceeds %d bytes", maxLine),
		},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`)
	}
	return data
}

// writeLine writes one response followed by a newline. Fprintf on the raw
// writer flushes per line; there is no buffering to defer.
func (t *Stdio) writeLine(resp []byte) error {
	_, err := fmt.Fprintf(t.out, "%s\n", resp)
	return err
}
