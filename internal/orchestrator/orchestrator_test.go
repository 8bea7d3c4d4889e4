package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnesslab/go-test-harness/internal/config"
	"github.com/harnesslab/go-test-harness/internal/runner"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptedSpawner returns a canned stdout per spawned command name.
type scriptedSpawner struct {
	mu      sync.Mutex
	outputs map[string]string // substring of command name -> stdout
	waitErr map[string]error
	calls   [][]string
}

func (s *scriptedSpawner) Spawn(ctx context.Context, name string, args ...string) (runner.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string{name}, args...))

	proc := &scriptedProcess{stdout: strings.NewReader(""), stderr: strings.NewReader("")}
	for key, out := range s.outputs {
		if strings.Contains(name, key) {
			proc.stdout = strings.NewReader(out)
		}
	}
	for key, err := range s.waitErr {
		if strings.Contains(name, key) {
			proc.waitErr = err
		}
	}
	return proc, nil
}

type scriptedProcess struct {
	stdout  io.Reader
	stderr  io.Reader
	waitErr error
}

func (p *scriptedProcess) Stdout() io.Reader { return p.stdout }
func (p *scriptedProcess) Stderr() io.Reader { return p.stderr }
func (p *scriptedProcess) Wait() error       { return p.waitErr }

// okBuilder always builds successfully and never watches.
type okBuilder struct{}

func (okBuilder) Build(ctx context.Context, cfg runner.BuildConfig) error {
	return nil
}

func (okBuilder) Watch(ctx context.Context, cfg runner.BuildConfig, interval time.Duration, onComplete func(error)) {
}

// writeTree creates test files under dir and returns dir.
func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("// test\n"), 0o644))
	}
	return dir
}

// closedPort returns a localhost port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, dir string) (*Orchestrator, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var sink, diag bytes.Buffer
	o, err := newOrchestrator(cfg, testLogger, dir, &sink, &diag)
	require.NoError(t, err)
	return o, &sink, &diag
}

func TestRunOnce_MergesOutputInCategoryOrder(t *testing.T) {
	dir := writeTree(t,
		"test/unit/a.test.js",
		"test/unit/b.test.js",
		"test/spec/login.spec.js",
	)

	cfg := config.DefaultConfig()
	cfg.SkipProbes = true
	o, sink, _ := newTestOrchestrator(t, cfg, dir)

	spawner := &scriptedSpawner{outputs: map[string]string{
		"unit-node": "unit results\n",
		"spec":      "spec results\n",
	}}
	o.spawner = spawner
	o.builder = okBuilder{}

	require.NoError(t, o.Run(context.Background()))

	// unit-browser has no files, so only two runners produced output.
	assert.Equal(t, "unit results\nspec results\n", sink.String())
	assert.True(t, o.Passed())
}

func TestRunOnce_SkippedCategoryLeavesNoGap(t *testing.T) {
	dir := writeTree(t, "test/spec/login.spec.js")

	cfg := config.DefaultConfig()
	cfg.SkipProbes = true
	o, sink, diag := newTestOrchestrator(t, cfg, dir)

	o.spawner = &scriptedSpawner{outputs: map[string]string{"spec": "spec results\n"}}
	o.builder = okBuilder{}

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, "spec results\n", sink.String())
	assert.Contains(t, diag.String(), "unit-node")
	assert.Contains(t, diag.String(), "no files")
	assert.True(t, o.Passed())
}

func TestRunOnce_BlocksSpecsWhenRequiredServiceDown(t *testing.T) {
	dir := writeTree(t,
		"test/unit/a.test.js",
		"test/spec/login.spec.js",
	)

	cfg := config.DefaultConfig()
	cfg.DatabasePort = closedPort(t)
	cfg.DevServerPort = closedPort(t)
	cfg.BrowserPort = closedPort(t)
	o, sink, diag := newTestOrchestrator(t, cfg, dir)

	spawner := &scriptedSpawner{outputs: map[string]string{
		"unit-node": "unit results\n",
		"spec":      "spec results\n",
	}}
	o.spawner = spawner
	o.builder = okBuilder{}

	require.NoError(t, o.Run(context.Background()))

	// Units still run; the spec category is gated out entirely.
	assert.Equal(t, "unit results\n", sink.String())
	for _, call := range spawner.calls {
		assert.NotContains(t, call[0], cfg.SpecCommand)
	}
	assert.Contains(t, diag.String(), "database")
	assert.Contains(t, diag.String(), "Fix:")
	assert.False(t, o.Passed())
}

func TestRunOnce_FailedCategoryFailsTheRun(t *testing.T) {
	dir := writeTree(t, "test/spec/login.spec.js")

	cfg := config.DefaultConfig()
	cfg.SkipProbes = true
	o, _, diag := newTestOrchestrator(t, cfg, dir)

	o.spawner = &scriptedSpawner{
		outputs: map[string]string{"spec": "1 failing\n"},
		waitErr: map[string]error{"spec": assert.AnError},
	}
	o.builder = okBuilder{}

	require.NoError(t, o.Run(context.Background()))

	assert.False(t, o.Passed())
	assert.Contains(t, diag.String(), "✗")
}

func TestRunOnce_AllCategoriesEmpty(t *testing.T) {
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.SkipProbes = true
	o, sink, diag := newTestOrchestrator(t, cfg, dir)

	o.spawner = &scriptedSpawner{}
	o.builder = okBuilder{}

	require.NoError(t, o.Run(context.Background()))

	assert.Empty(t, sink.String())
	assert.Contains(t, diag.String(), "no files")
	assert.True(t, o.Passed())
}

func TestRunWatch_NotificationTransportFailureIsFatal(t *testing.T) {
	dir := writeTree(t, "test/spec/login.spec.js")

	cfg := config.DefaultConfig()
	cfg.Watch = true
	cfg.SkipProbes = true
	cfg.NotifyURL = fmt.Sprintf("ws://127.0.0.1:%d/notify", closedPort(t))
	o, _, _ := newTestOrchestrator(t, cfg, dir)

	o.spawner = &scriptedSpawner{outputs: map[string]string{"spec": "spec results\n"}}
	o.builder = okBuilder{}

	err := o.Run(context.Background())
	require.Error(t, err, "a dead notification channel must end the session")
	assert.Contains(t, err.Error(), "notification")
}

func TestRunWatch_DevServerNotificationTriggersRerun(t *testing.T) {
	dir := writeTree(t, "test/spec/login.spec.js")

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("ping"))
		conn.WriteMessage(websocket.TextMessage, []byte("bundle rebuilt"))
		// Leave the channel open long enough for the debounced re-run,
		// then closing it ends the watch session.
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Watch = true
	cfg.SkipProbes = true
	cfg.DebounceWindow = 10 * time.Millisecond
	cfg.NotifyURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	o, sink, _ := newTestOrchestrator(t, cfg, dir)

	o.spawner = &scriptedSpawner{outputs: map[string]string{"spec": "spec results\n"}}
	o.builder = okBuilder{}

	err := o.Run(context.Background())
	require.Error(t, err, "channel teardown surfaces as a transport error")

	// Startup run plus exactly one notification-driven re-run; the
	// heartbeat never triggers.
	assert.Equal(t, "spec results\nspec results\n", sink.String())
}

func TestDiagnosticWritesAreSerialized(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SkipProbes = true
	o, _, diag := newTestOrchestrator(t, cfg, t.TempDir())

	line := strings.Repeat("x", 64) + "\n"
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				o.diag.Write([]byte(line))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, diag.String(), 8*50*len(line))
}

func TestNew_UnknownPathIsFatal(t *testing.T) {
	dir := writeTree(t, "src/app.js")

	cfg := config.DefaultConfig()
	cfg.Paths = []string{"src/app.js"}

	_, err := newOrchestrator(cfg, testLogger, dir, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover")
}
