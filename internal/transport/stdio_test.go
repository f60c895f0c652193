package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshmart/catalog-mcp/internal/mcp"
	"github.com/freshmart/catalog-mcp/internal/repository"
	"github.com/freshmart/catalog-mcp/internal/service"
	"github.com/freshmart/catalog-mcp/internal/store"
)

type fakeStore struct {
	docs []store.Document
}

func (f *fakeStore) QueryByCategory(_ context.Context, category string) ([]store.Document, error) {
	var out []store.Document
	for _, doc := range f.docs {
		if strings.EqualFold(doc.Category(), category) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) ScanAll(context.Context) ([]store.Document, error) { return f.docs, nil }
func (f *fakeStore) Put(_ context.Context, doc store.Document) error {
	f.docs = append(f.docs, doc)
	return nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func newTestStdio(in io.Reader, out *bytes.Buffer) *Stdio {
	svc := service.NewCatalogService(repository.NewCatalogRepository(&fakeStore{}), 2*time.Second)
	dispatcher := mcp.NewDispatcher(svc, mcp.ServerInfo{Name: "catalog-test", Version: "0.0.1"})
	return NewStdio(dispatcher, in, out, zerolog.Nop())
}

type frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *mcp.Error      `json:"error"`
}

func readFrames(t *testing.T, out *bytes.Buffer) []frame {
	t.Helper()
	var frames []frame
	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var f frame
		require.NoError(t, json.Unmarshal([]byte(line), &f), "each output line must be one JSON object")
		frames = append(frames, f)
	}
	return frames
}

func TestServeMalformedLineThenValid(t *testing.T) {
	// A malformed line yields one error frame and the loop keeps accepting
	// further requests.
	in := "this is not json\n" +
		`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"
	var out bytes.Buffer

	err := newTestStdio(strings.NewReader(in), &out).Serve(context.Background())
	require.NoError(t, err)

	frames := readFrames(t, &out)
	require.Len(t, frames, 2)

	require.NotNil(t, frames[0].Error)
	assert.Equal(t, mcp.CodeParseError, frames[0].Error.Code)
	assert.Nil(t, frames[0].ID)

	assert.Nil(t, frames[1].Error)
	assert.Equal(t, float64(1), frames[1].ID)
	assert.JSONEq(t, `{}`, string(frames[1].Result))
}

func TestServeOversizedLineThenValid(t *testing.T) {
	// A line over the size cap gets one parse-error frame and is discarded;
	// the next request on the stream is still served.
	in := `{"pad":"` + strings.Repeat("a", maxLine+1) + `"}` + "\n" +
		`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n"
	var out bytes.Buffer

	err := newTestStdio(strings.NewReader(in), &out).Serve(context.Background())
	require.NoError(t, err)

	frames := readFrames(t, &out)
	require.Len(t, frames, 2)

	require.NotNil(t, frames[0].Error)
	assert.Equal(t, mcp.CodeParseError, frames[0].Error.Code)
	assert.Nil(t, frames[0].ID)

	assert.Nil(t, frames[1].Error)
	assert.Equal(t, float64(1), frames[1].ID)
	assert.JSONEq(t, `{}`, string(frames[1].Result))
}

func TestServeSkipsBlankLinesAndStopsAtEOF(t *testing.T) {
	in := "\n\n" + `{"jsonrpc":"2.0","id":9,"method":"tools/list"}` + "\n\n"
	var out bytes.Buffer

	err := newTestStdio(strings.NewReader(in), &out).Serve(context.Background())
	require.NoError(t, err)

	frames := readFrames(t, &out)
	require.Len(t, frames, 1)
	assert.Equal(t, float64(9), frames[0].ID)
}

func TestServeProcessesInArrivalOrder(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n" +
		`{"jsonrpc":"2.0","id":3,"method":"ping"}` + "\n"
	var out bytes.Buffer

	require.NoError(t, newTestStdio(strings.NewReader(in), &out).Serve(context.Background()))

	frames := readFrames(t, &out)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, float64(i+1), f.ID)
	}
}

func TestServeHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	err := newTestStdio(in, &out).Serve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// blockedReader never delivers data until unblocked, like an idle stdin.
type blockedReader struct {
	unblock chan struct{}
}

func (r *blockedReader) Read([]byte) (int, error) {
	<-r.unblock
	return 0, io.EOF
}

func TestServeCancelDuringBlockedRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := &blockedReader{unblock: make(chan struct{})}
	defer close(in.unblock)

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- newTestStdio(in, &out).Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Empty(t, out.String())
}
