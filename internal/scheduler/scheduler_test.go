package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hchlab/hch/internal/action"
	"github.com/hchlab/hch/internal/datastore"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(datastore.New(), nil, nil)
}

func TestNewSessionHasOneReadyContext(t *testing.T) {
	s := newTestScheduler(t)
	sess, err := s.NewSession("what is the capital of France")
	require.NoError(t, err)
	assert.False(t, sess.Blocked())

	ctx, err := s.ChooseContext(sess)
	require.NoError(t, err)
	require.NotNil(t, ctx)
	assert.Contains(t, ctx.Rendering(), "what is the capital of France")
}

func TestReplyToRootFulfilsRootAnswer(t *testing.T) {
	s := newTestScheduler(t)
	sess, err := s.NewSession("2+2?")
	require.NoError(t, err)
	ctx, err := s.ChooseContext(sess)
	require.NoError(t, err)

	assert.False(t, s.Store().IsFulfilled(sess.RootAnswer))
	err = s.ResolveAction(sess, ctx, action.Action{Kind: action.Reply, Text: "4"})
	require.NoError(t, err)
	assert.True(t, s.Store().IsFulfilled(sess.RootAnswer))
}

func TestAskProducesChildContextAndSuccessor(t *testing.T) {
	s := newTestScheduler(t)
	sess, err := s.NewSession("root question")
	require.NoError(t, err)
	ctx, err := s.ChooseContext(sess)
	require.NoError(t, err)

	err = s.ResolveAction(sess, ctx, action.Action{Kind: action.Ask, Text: "sub question"})
	require.NoError(t, err)
	assert.False(t, sess.Blocked())

	next, err := s.ChooseContext(sess)
	require.NoError(t, err)
	require.NotNil(t, next)
}

func TestUnlockParksWhenTargetUnfulfilled(t *testing.T) {
	s := newTestScheduler(t)
	sess, err := s.NewSession("root question")
	require.NoError(t, err)
	ctx, err := s.ChooseContext(sess)
	require.NoError(t, err)

	err = s.ResolveAction(sess, ctx, action.Action{Kind: action.Ask, Text: "sub question"})
	require.NoError(t, err)

	// The successor context (front of ready queue) should offer an "a1"
	// pointer whose promise is not yet fulfilled by the child.
	successor, err := s.ChooseContext(sess)
	require.NoError(t, err)
	require.NotNil(t, successor)
	_, hasA1 := successor.PointerNames()["a1"]
	require.True(t, hasA1)

	err = s.ResolveAction(sess, successor, action.Action{Kind: action.Unlock, PointerID: "a1"})
	require.NoError(t, err)

	// Unlocking an unfulfilled promise parks: the session's ready queue
	// no longer contains a context for this unlock, only the still-pending
	// child.
	remaining, err := s.ChooseContext(sess)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Contains(t, remaining.Rendering(), "sub question")
}

func TestUnlockWakesParkedContextOnReply(t *testing.T) {
	s := newTestScheduler(t)
	sess, err := s.NewSession("root question")
	require.NoError(t, err)
	rootCtx, err := s.ChooseContext(sess)
	require.NoError(t, err)

	err = s.ResolveAction(sess, rootCtx, action.Action{Kind: action.Ask, Text: "sub question"})
	require.NoError(t, err)

	successor, err := s.ChooseContext(sess)
	require.NoError(t, err)
	err = s.ResolveAction(sess, successor, action.Action{Kind: action.Unlock, PointerID: "a1"})
	require.NoError(t, err)

	childCtx, err := s.ChooseContext(sess)
	require.NoError(t, err)
	require.Contains(t, childCtx.Rendering(), "sub question")

	err = s.ResolveAction(sess, childCtx, action.Action{Kind: action.Reply, Text: "sub answer"})
	require.NoError(t, err)

	woken, err := s.ChooseContext(sess)
	require.NoError(t, err)
	require.NotNil(t, woken)
	assert.Contains(t, woken.Rendering(), "sub answer")
}

func TestScratchProducesNewSuccessorWithUpdatedScratchpad(t *testing.T) {
	s := newTestScheduler(t)
	sess, err := s.NewSession("root question")
	require.NoError(t, err)
	ctx, err := s.ChooseContext(sess)
	require.NoError(t, err)

	err = s.ResolveAction(sess, ctx, action.Action{Kind: action.Scratch, Text: "note to self"})
	require.NoError(t, err)

	next, err := s.ChooseContext(sess)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Contains(t, next.Rendering(), "note to self")
}

func TestAutomationCacheReplaysIdenticalRendering(t *testing.T) {
	s := newTestScheduler(t)
	sess1, err := s.NewSession("what color is the sky")
	require.NoError(t, err)
	ctx1, err := s.ChooseContext(sess1)
	require.NoError(t, err)
	err = s.ResolveAction(sess1, ctx1, action.Action{Kind: action.Reply, Text: "blue"})
	require.NoError(t, err)

	sess2, err := s.NewSession("what color is the sky")
	require.NoError(t, err)
	// ChooseContext should auto-replay the cached reply without prompting.
	next, err := s.ChooseContext(sess2)
	require.NoError(t, err)
	assert.Nil(t, next, "session should have run to completion via automation")
	assert.True(t, s.Store().IsFulfilled(sess2.RootAnswer))
}

func TestUnknownPointerOnUnlockIsRecoverable(t *testing.T) {
	s := newTestScheduler(t)
	sess, err := s.NewSession("root question")
	require.NoError(t, err)
	ctx, err := s.ChooseContext(sess)
	require.NoError(t, err)

	err = s.ResolveAction(sess, ctx, action.Action{Kind: action.Unlock, PointerID: "nope"})
	require.Error(t, err)
	var upe *UnknownPointerError
	require.ErrorAs(t, err, &upe)
	assert.True(t, isRecoverable(err))
}
