package procprobe

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStat_Self(t *testing.T) {
	p, err := ReadStat(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), p.Pid)
	assert.NotZero(t, p.CreateTime)
}

func TestReadStat_NotFound(t *testing.T) {
	// A pid that is very unlikely to exist.
	_, err := ReadStat(1 << 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestReadResidentBytes_NonExistentIsZero(t *testing.T) {
	rss, err := ReadResidentBytes(1 << 30)
	require.NoError(t, err)
	assert.Zero(t, rss)
}

func TestEnumerateProcesses_IncludesSelf(t *testing.T) {
	procs, err := EnumerateProcesses()
	require.NoError(t, err)

	found := false
	for _, p := range procs {
		if p.Pid == os.Getpid() {
			found = true
			break
		}
	}
	assert.True(t, found, "self pid should be present in enumeration")
}

func TestDescendantTree_IncludesSpawnedChild(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a child process")
	}

	cmd := exec.Command("sleep", "2")
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	// Give the kernel a moment to expose the child in /proc.
	time.Sleep(100 * time.Millisecond)

	tree, err := DescendantTree(os.Getpid())
	require.NoError(t, err)

	found := false
	for _, p := range tree {
		if p.Pid == cmd.Process.Pid {
			found = true
		}
	}
	assert.True(t, found, "spawned child should appear in descendant tree")
}

func TestIsAlive_DetectsExit(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a child process")
	}

	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	p, err := ReadStat(pid)
	// The process may have already exited by the time we stat it; either
	// outcome is fine as long as IsAlive is consistent afterwards.
	if err == nil {
		_ = cmd.Wait()
		assert.False(t, IsAlive(p))
	} else {
		_ = cmd.Wait()
	}
}

func TestKillTree_NoErrorOnAlreadyExited(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a child process")
	}

	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	_ = cmd.Wait()

	assert.NoError(t, KillTree(pid, syscall.SIGKILL, true))
}
