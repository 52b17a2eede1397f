package task

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T, program string, args []string) *Task {
	t.Helper()
	dir := t.TempDir()
	return New("t1", program, args, filepath.Join(dir, "t1.log"), filepath.Join(dir, "t1.err"))
}

func TestTask_InitialState(t *testing.T) {
	tk := newTestTask(t, "true", nil)
	assert.Equal(t, Waiting, tk.Status)
	assert.False(t, tk.HasHandle())
	assert.Zero(t, tk.RunningTime())
	assert.Zero(t, tk.WaitingTime())
}

func TestTask_SpawnAndTryWait_Success(t *testing.T) {
	tk := newTestTask(t, "true", nil)
	require.True(t, tk.Spawn())
	assert.True(t, tk.HasHandle())
	assert.NotZero(t, tk.RunningTime())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done, err := tk.TryWait()
		require.NoError(t, err)
		if done {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task never reaped")
}

func TestTask_Spawn_NonexistentProgramFails(t *testing.T) {
	tk := newTestTask(t, "/nonexistent/binary/does/not/exist", nil)
	assert.False(t, tk.Spawn())
}

func TestTask_TryWait_NoHandleErrors(t *testing.T) {
	tk := newTestTask(t, "true", nil)
	_, err := tk.TryWait()
	assert.ErrorIs(t, err, ErrNoHandle)
}

func TestTask_Stop_KillsLongRunningChild(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a long-lived child process")
	}
	tk := newTestTask(t, "sleep", []string{"30"})
	require.True(t, tk.Spawn())
	pid := tk.Pid()
	require.NotZero(t, pid)

	require.NoError(t, tk.Stop())

	err := syscall.Kill(pid, 0)
	assert.Error(t, err, "child should no longer exist after Stop")
}

func TestTask_Stop_IdempotentAfterNaturalExit(t *testing.T) {
	tk := newTestTask(t, "true", nil)
	require.True(t, tk.Spawn())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done, _ := tk.TryWait()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.NoError(t, tk.Stop())
	assert.NoError(t, tk.Stop())
}

func TestTask_WaitingTime_ResetAndElapse(t *testing.T) {
	tk := newTestTask(t, "true", nil)
	assert.Zero(t, tk.WaitingTime())
	tk.ResetWaitingTime()
	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, tk.WaitingTime(), time.Duration(0))
}

func TestTask_Spawn_RedirectsStdio(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")
	errPath := filepath.Join(dir, "out.err")
	tk := New("echoer", "sh", []string{"-c", "echo hello; echo world 1>&2"}, logPath, errPath)

	require.True(t, tk.Spawn())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		done, _ := tk.TryWait()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	out, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello")

	errOut, err := os.ReadFile(errPath)
	require.NoError(t, err)
	assert.Contains(t, string(errOut), "world")
}

func TestTask_CommandLine(t *testing.T) {
	tk := New("n", "python", []string{"train.py", "--epochs", "5"}, "", "")
	assert.Equal(t, "python train.py --epochs 5", tk.CommandLine())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Waiting", Waiting.String())
	assert.Equal(t, "Running", Running.String())
	assert.Equal(t, "Exited", Exited.String())
	assert.Equal(t, "Timeout", Timeout.String())
	assert.Equal(t, "Killed", Killed.String())
}
