package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hchlab/hch/internal/action"
	"github.com/hchlab/hch/internal/scheduler"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "hch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hch.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestOpenAppliesWALMode(t *testing.T) {
	s := openTest(t)
	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestLoadEngineOnEmptyDatabaseProducesFreshScheduler(t *testing.T) {
	s := openTest(t)
	sched, sessions, err := LoadEngine(context.Background(), s, nil)
	require.NoError(t, err)
	assert.NotNil(t, sched)
	assert.Empty(t, sessions)
}

func TestSaveAndLoadEngineRoundTripsUnansweredSession(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	sched, sessions, err := LoadEngine(ctx, s, nil)
	require.NoError(t, err)
	require.Empty(t, sessions)

	sess, err := sched.NewSession("what is the capital of France")
	require.NoError(t, err)
	require.Len(t, sess.Ready(), 1, "root session starts with exactly one ready context")
	origRendering := sess.Ready()[0].Rendering()

	require.NoError(t, SaveEngine(ctx, s, sched, []*scheduler.Session{sess}))

	sched2, sessions2, err := LoadEngine(ctx, s, nil)
	require.NoError(t, err)
	require.Len(t, sessions2, 1)

	restoredCtx, err := sched2.ChooseContext(sessions2[0])
	require.NoError(t, err)
	require.NotNil(t, restoredCtx)
	assert.Equal(t, origRendering, restoredCtx.Rendering())
}

func TestSaveAndLoadEngineRoundTripsAutomationCache(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	sched, _, err := LoadEngine(ctx, s, nil)
	require.NoError(t, err)

	sess, err := sched.NewSession("2+2?")
	require.NoError(t, err)
	rootCtx, err := sched.ChooseContext(sess)
	require.NoError(t, err)
	require.NoError(t, sched.ResolveAction(sess, rootCtx, action.Action{Kind: action.Reply, Text: "4"}))

	require.NoError(t, SaveEngine(ctx, s, sched, []*scheduler.Session{sess}))

	sched2, _, err := LoadEngine(ctx, s, nil)
	require.NoError(t, err)

	sess2, err := sched2.NewSession("2+2?")
	require.NoError(t, err)
	next, err := sched2.ChooseContext(sess2)
	require.NoError(t, err)
	assert.Nil(t, next, "restored automation cache should auto-answer the identical question")
	assert.True(t, sched2.Store().IsFulfilled(sess2.RootAnswer))
}

func TestSaveAndLoadEngineRoundTripsParkedWaiter(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	sched, _, err := LoadEngine(ctx, s, nil)
	require.NoError(t, err)

	sess, err := sched.NewSession("root question")
	require.NoError(t, err)
	rootCtx, err := sched.ChooseContext(sess)
	require.NoError(t, err)
	require.NoError(t, sched.ResolveAction(sess, rootCtx, action.Action{Kind: action.Ask, Text: "sub question"}))

	successor, err := sched.ChooseContext(sess)
	require.NoError(t, err)
	require.NoError(t, sched.ResolveAction(sess, successor, action.Action{Kind: action.Unlock, PointerID: "a1"}))

	// The child (sub-question) context is still queued, not yet handed to a
	// driver, at the moment of the snapshot.
	require.Len(t, sess.Ready(), 1)

	require.NoError(t, SaveEngine(ctx, s, sched, []*scheduler.Session{sess}))

	sched2, sessions2, err := LoadEngine(ctx, s, nil)
	require.NoError(t, err)
	require.Len(t, sessions2, 1)

	restoredChild, err := sched2.ChooseContext(sessions2[0])
	require.NoError(t, err)
	require.NotNil(t, restoredChild)
	require.NoError(t, sched2.ResolveAction(sessions2[0], restoredChild, action.Action{Kind: action.Reply, Text: "sub answer"}))

	woken, err := sched2.ChooseContext(sessions2[0])
	require.NoError(t, err)
	require.NotNil(t, woken)
	assert.Contains(t, woken.Rendering(), "sub answer")
}
