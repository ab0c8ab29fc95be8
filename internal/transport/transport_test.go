package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/protocol"
	"github.com/thoreinstein/mcphost/internal/registry"
)

// pipePeer drives a transport over in-memory pipes, standing in for a
// child process.
type pipePeer struct {
	t *Transport

	stdin  *bufio.Scanner // requests we receive from the transport
	stdout *io.PipeWriter // lines we write back as the peer
	stderr *io.PipeWriter
}

func newPipePeer(handlers Handlers) *pipePeer {
	tr := New(registry.Invocation{Command: "fake"}, Options{}, handlers)

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	tr.stdin = stdinW
	tr.start(stdoutR, stderrR)

	return &pipePeer{
		t:      tr,
		stdin:  bufio.NewScanner(stdinR),
		stdout: stdoutW,
		stderr: stderrW,
	}
}

func (p *pipePeer) close() {
	p.stdout.Close()
	p.stderr.Close()
	p.t.rejectAll()
	p.t.streams.Wait()
}

// respond reads one request and answers it with the given result.
func (p *pipePeer) respond(t *testing.T, result any) {
	t.Helper()
	require.True(t, p.stdin.Scan(), "expected a request line")

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(p.stdin.Bytes(), &env))
	require.NotNil(t, env.ID)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	fmt.Fprintf(p.stdout, `{"jsonrpc":"2.0","id":%d,"result":%s}`+"\n", *env.ID, raw)
}

func TestCallResponseCorrelation(t *testing.T) {
	p := newPipePeer(Handlers{})
	defer p.close()

	go p.respond(t, map[string]string{"ok": "yes"})

	res, err := p.t.Call(context.Background(), protocol.MethodToolsList, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":"yes"}`, string(res))
}

func TestConcurrentCallsCompleteOutOfOrder(t *testing.T) {
	p := newPipePeer(Handlers{})
	defer p.close()

	// Collect both requests first, then answer in reverse order.
	ready := make(chan protocol.ID, 2)
	go func() {
		var ids []protocol.ID
		for i := 0; i < 2; i++ {
			if !p.stdin.Scan() {
				return
			}
			var env protocol.Envelope
			if json.Unmarshal(p.stdin.Bytes(), &env) != nil || env.ID == nil {
				return
			}
			ids = append(ids, *env.ID)
		}
		for i := len(ids) - 1; i >= 0; i-- {
			fmt.Fprintf(p.stdout, `{"jsonrpc":"2.0","id":%d,"result":{"seq":%d}}`+"\n", ids[i], ids[i])
			ready <- ids[i]
		}
	}()

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			res, err := p.t.Call(context.Background(), protocol.MethodToolsList, nil)
			require.NoError(t, err)
			results[slot] = string(res)
		}(i)
	}
	wg.Wait()

	assert.NotEqual(t, results[0], results[1])
}

func TestCallTimeout(t *testing.T) {
	p := newPipePeer(Handlers{})
	defer p.close()

	// Drain the request but never answer.
	firstRead := make(chan struct{})
	go func() {
		p.stdin.Scan()
		close(firstRead)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.t.Call(ctx, protocol.MethodToolsCall, protocol.CallToolParams{Name: "echo"})
	require.Error(t, err)
	assert.True(t, hosterrors.IsTimeout(err))
	assert.Contains(t, err.Error(), protocol.MethodToolsCall)
	<-firstRead

	// The pending call was removed; a late response for it is ignored
	// and the transport still serves new calls.
	fmt.Fprintf(p.stdout, `{"jsonrpc":"2.0","id":1,"result":{}}`+"\n")

	go p.respond(t, map[string]int{"n": 2})
	res, err := p.t.Call(context.Background(), protocol.MethodToolsList, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(res))
}

func TestNonJSONLinesAreSkipped(t *testing.T) {
	var mu sync.Mutex
	var nonJSON []string

	p := newPipePeer(Handlers{
		OnNonJSON: func(line string) {
			mu.Lock()
			nonJSON = append(nonJSON, line)
			mu.Unlock()
		},
	})
	defer p.close()

	go func() {
		fmt.Fprintln(p.stdout, "Welcome to my-server v1.2")
		fmt.Fprintln(p.stdout, "> ready")
		p.respond(t, map[string]bool{"done": true})
	}()

	res, err := p.t.Call(context.Background(), protocol.MethodToolsList, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"done":true}`, string(res))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Welcome to my-server v1.2", "> ready"}, nonJSON)
}

func TestMalformedJSONSurfacesTransportError(t *testing.T) {
	errCh := make(chan error, 1)
	p := newPipePeer(Handlers{
		OnTransportError: func(err error) { errCh <- err },
	})
	defer p.close()

	fmt.Fprintln(p.stdout, `{"jsonrpc": "2.0", "id": broken`)

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), `{"jsonrpc": "2.0", "id": broken`)
	case <-time.After(time.Second):
		t.Fatal("no transport error surfaced")
	}
}

func TestNotificationDispatch(t *testing.T) {
	got := make(chan *protocol.Envelope, 1)
	p := newPipePeer(Handlers{
		OnNotification: func(env *protocol.Envelope) { got <- env },
	})
	defer p.close()

	fmt.Fprintln(p.stdout, `{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`)

	select {
	case env := <-got:
		assert.Equal(t, protocol.MethodToolsListChanged, env.Method)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestPeerErrorPrependsMethod(t *testing.T) {
	p := newPipePeer(Handlers{})
	defer p.close()

	go func() {
		require.True(t, p.stdin.Scan())
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(p.stdin.Bytes(), &env))
		fmt.Fprintf(p.stdout, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32602,"message":"bad params"}}`+"\n", *env.ID)
	}()

	_, err := p.t.Call(context.Background(), protocol.MethodPromptsGet, nil)
	require.Error(t, err)

	pe, ok := hosterrors.AsPeerError(err)
	require.True(t, ok)
	assert.Equal(t, protocol.MethodPromptsGet, pe.Method)
	assert.Equal(t, -32602, pe.Code)
	assert.Contains(t, err.Error(), "prompts/get")
}

func TestTeardownRejectsPending(t *testing.T) {
	p := newPipePeer(Handlers{})

	done := make(chan error, 1)
	go func() {
		_, err := p.t.Call(context.Background(), protocol.MethodToolsList, nil)
		done <- err
	}()

	// Wait for the request to hit the wire so the call is pending.
	require.True(t, p.stdin.Scan())
	p.t.rejectAll()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, hosterrors.ErrConnectionClosed))
	case <-time.After(time.Second):
		t.Fatal("pending call not rejected")
	}

	// Calls after teardown fail immediately.
	_, err := p.t.Call(context.Background(), protocol.MethodToolsList, nil)
	assert.True(t, errors.Is(err, hosterrors.ErrConnectionClosed))
}

func TestStderrClassification(t *testing.T) {
	type entry struct {
		line   string
		benign bool
	}
	got := make(chan entry, 4)
	p := newPipePeer(Handlers{
		OnStderr: func(line string, benign bool) { got <- entry{line, benign} },
	})
	defer p.close()

	fmt.Fprintln(p.stderr, "npm notice created a lockfile")
	fmt.Fprintln(p.stderr, "Server running on stdio")
	fmt.Fprintln(p.stderr, "ECONNREFUSED 127.0.0.1:8080")

	want := []entry{
		{"npm notice created a lockfile", true},
		{"Server running on stdio", true},
		{"ECONNREFUSED 127.0.0.1:8080", false},
	}
	for _, w := range want {
		select {
		case e := <-got:
			assert.Equal(t, w, e)
		case <-time.After(time.Second):
			t.Fatalf("missing stderr line %q", w.line)
		}
	}
}

func TestIsBenignStderr(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"npm WARN deprecated package", true},
		{"npm notice", true},
		{"npm info ok", true},
		{"added 12 packages in 3s", true},
		{"audited 200 packages", true},
		{"found 0 vulnerabilities", true},
		{"up to date in 1s", true},
		{"MCP server running on stdio", true},
		{"Error: cannot find module", false},
		{"TypeError: undefined is not a function", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBenignStderr(tt.line), tt.line)
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError("Error: ECONNREFUSED"))
	assert.True(t, IsConnectionError("network unreachable"))
	assert.True(t, IsConnectionError("request timeout after 30s"))
	assert.True(t, IsConnectionError("Connection reset by peer"))
	assert.False(t, IsConnectionError("TypeError: x is not a function"))
}

func TestSpawnRealProcessExitCodes(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantEligible bool
		wantCode     int
	}{
		{"clean exit", []string{"-c", "exit 0"}, false, 0},
		{"benign exit 1", []string{"-c", "exit 1"}, false, 1},
		{"crash-style exit", []string{"-c", "exit 3"}, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCh := make(chan ExitInfo, 1)
			tr := New(registry.Invocation{Command: "sh", Args: tt.args}, Options{}, Handlers{
				OnExit: func(info ExitInfo) { exitCh <- info },
			})
			require.NoError(t, tr.Spawn())

			select {
			case info := <-exitCh:
				assert.Equal(t, tt.wantCode, info.Code)
				assert.Equal(t, tt.wantEligible, info.ReconnectEligible)
			case <-time.After(5 * time.Second):
				t.Fatal("process did not exit")
			}
		})
	}
}

func TestCloseTerminatesProcess(t *testing.T) {
	exitCh := make(chan ExitInfo, 1)
	tr := New(registry.Invocation{Command: "sleep", Args: []string{"60"}}, Options{ShutdownTimeout: 2 * time.Second}, Handlers{
		OnExit: func(info ExitInfo) { exitCh <- info },
	})
	require.NoError(t, tr.Spawn())
	assert.NotZero(t, tr.Pid())

	require.NoError(t, tr.Close())

	select {
	case info := <-exitCh:
		// SIGTERM initiated by us is never reconnect-eligible.
		assert.False(t, info.ReconnectEligible)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not reap the process")
	}
}
