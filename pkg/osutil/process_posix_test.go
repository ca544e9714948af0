//go:build unix

package osutil

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGrace = 500 * time.Millisecond

func TestIsolate(t *testing.T) {
	cmd := exec.Command("echo", "test")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: false}
	Isolate(cmd, testGrace)

	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
	assert.Equal(t, testGrace+time.Second, cmd.WaitDelay)
	assert.NotNil(t, cmd.Cancel)
}

func TestIsolate_TermHonoured(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", `trap 'exit 0' TERM; while true; do sleep 0.1; done`)
	Isolate(cmd, testGrace)
	require.NoError(t, cmd.Start())

	time.Sleep(200 * time.Millisecond)
	started := time.Now()
	cancel()
	_ = cmd.Wait()

	assert.Less(t, time.Since(started), testGrace)
}

func TestIsolate_KillsChildrenIgnoringTerm(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	script := `(trap '' TERM; while true; do sleep 0.1; done) & echo $!; trap '' TERM; while true; do sleep 0.1; done`
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	Isolate(cmd, testGrace)

	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	buf := make([]byte, 32)
	n, err := stdout.Read(buf)
	require.NoError(t, err)
	childPid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	started := time.Now()
	cancel()
	_ = cmd.Wait()
	time.Sleep(100 * time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(started), testGrace-100*time.Millisecond)
	assert.Error(t, syscall.Kill(cmd.Process.Pid, 0))
	assert.Error(t, syscall.Kill(childPid, 0))
}

func TestIsolate_WaitReturnsWithBufferedOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// the background child keeps stdout open after its parent exits
	cmd := exec.CommandContext(ctx, "sh", "-c", `(trap '' TERM; sleep 30) & echo started; wait`)
	var out bytes.Buffer
	cmd.Stdout = &out
	Isolate(cmd, testGrace)

	started := time.Now()
	require.NoError(t, cmd.Start())
	_ = cmd.Wait()

	assert.Less(t, time.Since(started), testGrace+2*time.Second)
	assert.Equal(t, "started\n", out.String())
}

func TestIsolate_ProcessAlreadyDead(t *testing.T) {
	cmd := exec.Command("true")
	Isolate(cmd, testGrace)

	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Wait())

	assert.NoError(t, cmd.Cancel())
}
