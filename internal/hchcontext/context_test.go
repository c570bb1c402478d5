package hchcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/datastore"
	"github.com/hchlab/hch/internal/hypertext"
	"github.com/hchlab/hch/internal/workspace"
)

func textAddr(t *testing.T, d *datastore.Datastore, s string) address.Address {
	t.Helper()
	return d.AllocateFilled(hypertext.NewRaw(hypertext.Text(s)))
}

func TestNewDefaultUnlockedIncludesQuestionScratchpadAndSubquestions(t *testing.T) {
	d := datastore.New()
	q := textAddr(t, d, "root question")
	s := textAddr(t, d, "")
	sq := textAddr(t, d, "sub question")
	entry := workspace.SubEntry{Question: sq, Answer: d.AllocatePromise(), Workspace: d.AllocatePromise()}
	ws := workspace.New(address.Address{}, q, s, []workspace.SubEntry{entry})
	wsAddr := d.Insert(ws)

	ctx, err := New(d, wsAddr, nil)
	require.NoError(t, err)
	assert.True(t, ctx.Unlocked[q])
	assert.True(t, ctx.Unlocked[s])
	assert.True(t, ctx.Unlocked[sq])
	assert.True(t, ctx.Unlocked[wsAddr])
	assert.False(t, ctx.Unlocked[entry.Answer], "sub-answers are locked by default")
	assert.False(t, ctx.Unlocked[entry.Workspace], "sub-workspaces are locked by default")
}

func TestNamePointersAssignsStructuralTags(t *testing.T) {
	d := datastore.New()
	q := textAddr(t, d, "root question")
	s := textAddr(t, d, "")
	sq := textAddr(t, d, "sub question")
	entry := workspace.SubEntry{Question: sq, Answer: d.AllocatePromise(), Workspace: d.AllocatePromise()}
	ws := workspace.New(address.Address{}, q, s, []workspace.SubEntry{entry})
	wsAddr := d.Insert(ws)

	ctx, err := New(d, wsAddr, nil)
	require.NoError(t, err)
	names := ctx.PointerNames()
	assert.Equal(t, s, names["s"])
	assert.Equal(t, sq, names["q1"])
	assert.Equal(t, entry.Answer, names["a1"])
	assert.Equal(t, entry.Workspace, names["w1"])
	_, hasPredecessor := names["p"]
	assert.False(t, hasPredecessor, "root workspace has no predecessor tag")
}

func TestRenderingIsDeterministicForEqualState(t *testing.T) {
	d := datastore.New()
	q := textAddr(t, d, "root question")
	s := textAddr(t, d, "")
	ws := workspace.New(address.Address{}, q, s, nil)
	wsAddr := d.Insert(ws)

	c1, err := New(d, wsAddr, nil)
	require.NoError(t, err)
	c2, err := New(d, wsAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, c1.Rendering(), c2.Rendering())
}

func TestRenderingContainsUnlockedQuestionText(t *testing.T) {
	d := datastore.New()
	q := textAddr(t, d, "what is the answer")
	s := textAddr(t, d, "")
	ws := workspace.New(address.Address{}, q, s, nil)
	wsAddr := d.Insert(ws)

	ctx, err := New(d, wsAddr, nil)
	require.NoError(t, err)
	assert.Contains(t, ctx.Rendering(), "what is the answer")
}

func TestRenderingHidesLockedSubAnswer(t *testing.T) {
	d := datastore.New()
	q := textAddr(t, d, "root question")
	s := textAddr(t, d, "")
	sq := textAddr(t, d, "sub question")
	answerPromise := d.AllocatePromise()
	_, err := d.Fulfil(answerPromise, hypertext.NewRaw(hypertext.Text("secret answer content")))
	require.NoError(t, err)
	entry := workspace.SubEntry{Question: sq, Answer: answerPromise, Workspace: d.AllocatePromise()}
	ws := workspace.New(address.Address{}, q, s, []workspace.SubEntry{entry})
	wsAddr := d.Insert(ws)

	ctx, err := New(d, wsAddr, nil)
	require.NoError(t, err)
	assert.NotContains(t, ctx.Rendering(), "secret answer content")
}

func TestUnlockRevealsPreviouslyLockedContent(t *testing.T) {
	d := datastore.New()
	q := textAddr(t, d, "root question")
	s := textAddr(t, d, "")
	sq := textAddr(t, d, "sub question")
	answerPromise := d.AllocatePromise()
	_, err := d.Fulfil(answerPromise, hypertext.NewRaw(hypertext.Text("visible once unlocked")))
	require.NoError(t, err)
	entry := workspace.SubEntry{Question: sq, Answer: answerPromise, Workspace: d.AllocatePromise()}
	ws := workspace.New(address.Address{}, q, s, []workspace.SubEntry{entry})
	wsAddr := d.Insert(ws)

	ctx, err := New(d, wsAddr, nil)
	require.NoError(t, err)

	unlocked, err := ctx.UnlockedLocationsFor(d, wsAddr)
	require.NoError(t, err)
	unlocked[answerPromise] = true
	ctx2, err := New(d, wsAddr, unlocked)
	require.NoError(t, err)
	assert.Contains(t, ctx2.Rendering(), "visible once unlocked")
}
