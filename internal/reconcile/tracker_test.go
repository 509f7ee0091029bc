package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	require.Equal(t, ActionSnapshot, ParseAction("snapshot"))
	require.Equal(t, ActionRestore, ParseAction("restore"))
	require.Equal(t, ActionClean, ParseAction("clean"))
	require.Equal(t, ActionUnknown, ParseAction("frobnicate"))
}

func TestTracker_StartThenStop(t *testing.T) {
	tracker := NewActionTracker("/home/user/proj", nil, discardLogger())

	completed := tracker.OnNotice("/home/user/proj", "restore", true)
	require.Equal(t, ActionNone, completed)
	require.Equal(t, ActionRestore, tracker.Running())

	completed = tracker.OnNotice("/home/user/proj", "restore", false)
	require.Equal(t, ActionRestore, completed)
	require.Equal(t, ActionNone, tracker.Running())
}

func TestTracker_IgnoresOtherProjects(t *testing.T) {
	tracker := NewActionTracker("/home/user/proj", nil, discardLogger())

	completed := tracker.OnNotice("/home/user/other", "snapshot", true)
	require.Equal(t, ActionNone, completed)
	require.Equal(t, ActionNone, tracker.Running())
}

func TestTracker_MatchesUncleanedPaths(t *testing.T) {
	tracker := NewActionTracker("/home/user/proj", nil, discardLogger())

	tracker.OnNotice("/home/user/./proj", "snapshot", true)
	require.Equal(t, ActionSnapshot, tracker.Running())
}

func TestTracker_SecondStartOverwrites(t *testing.T) {
	tracker := NewActionTracker("/home/user/proj", nil, discardLogger())

	tracker.OnNotice("/home/user/proj", "snapshot", true)
	tracker.OnNotice("/home/user/proj", "restore", true)
	require.Equal(t, ActionRestore, tracker.Running())

	completed := tracker.OnNotice("/home/user/proj", "restore", false)
	require.Equal(t, ActionRestore, completed)
}

func TestTracker_StopWithoutStart(t *testing.T) {
	tracker := NewActionTracker("/home/user/proj", nil, discardLogger())

	completed := tracker.OnNotice("/home/user/proj", "clean", false)
	require.Equal(t, ActionClean, completed)
}
