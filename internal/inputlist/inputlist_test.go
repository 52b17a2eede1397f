package inputlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WithoutTaskName(t *testing.T) {
	input := "sleep 0.1\npython train.py --epochs 5\n"
	entries, err := Parse(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "sleep", entries[0].Program)
	assert.Equal(t, []string{"0.1"}, entries[0].Args)
	assert.NotEmpty(t, entries[0].Name)

	assert.Equal(t, "python", entries[1].Program)
	assert.Equal(t, []string{"train.py", "--epochs", "5"}, entries[1].Args)
	assert.NotEqual(t, entries[0].Name, entries[1].Name)
}

func TestParse_WithTaskName(t *testing.T) {
	input := "job1 sleep 0.1\njob2 python train.py\n"
	entries, err := Parse(strings.NewReader(input), true)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "job1", entries[0].Name)
	assert.Equal(t, "sleep", entries[0].Program)
	assert.Equal(t, []string{"0.1"}, entries[0].Args)

	assert.Equal(t, "job2", entries[1].Name)
	assert.Equal(t, "python", entries[1].Program)
}

func TestParse_EmptyLinesSkipped(t *testing.T) {
	input := "\n\nsleep 1\n\n"
	entries, err := Parse(strings.NewReader(input), false)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParse_EmptyInputYieldsNoTasks(t *testing.T) {
	entries, err := Parse(strings.NewReader(""), false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParse_WithTaskName_NameOnlyLineFails(t *testing.T) {
	_, err := Parse(strings.NewReader("onlyname\n"), true)
	assert.Error(t, err)
}

func TestParse_WithTaskName_WhitespaceOnlyLineSkipped(t *testing.T) {
	entries, err := Parse(strings.NewReader("   \njob1 sleep 1\n"), true)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "job1", entries[0].Name)
}
