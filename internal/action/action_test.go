package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAsk(t *testing.T) {
	a, err := Parse("ask what is 2+2")
	require.NoError(t, err)
	assert.Equal(t, Ask, a.Kind)
	assert.Equal(t, "what is 2+2", a.Text)
}

func TestParseReply(t *testing.T) {
	a, err := Parse("reply the answer is 4")
	require.NoError(t, err)
	assert.Equal(t, Reply, a.Kind)
	assert.Equal(t, "the answer is 4", a.Text)
}

func TestParseUnlock(t *testing.T) {
	a, err := Parse("unlock $a1")
	require.NoError(t, err)
	assert.Equal(t, Unlock, a.Kind)
	assert.Equal(t, "a1", a.PointerID)
}

func TestParseScratchAllowsEmptyText(t *testing.T) {
	a, err := Parse("scratch")
	require.NoError(t, err)
	assert.Equal(t, Scratch, a.Kind)
	assert.Equal(t, "", a.Text)
}

func TestParseScratchWithText(t *testing.T) {
	a, err := Parse("scratch remember this")
	require.NoError(t, err)
	assert.Equal(t, "remember this", a.Text)
}

func TestParseIsCaseInsensitiveOnVerb(t *testing.T) {
	a, err := Parse("ASK loud question")
	require.NoError(t, err)
	assert.Equal(t, Ask, a.Kind)
}

func TestParseAskRequiresText(t *testing.T) {
	_, err := Parse("ask")
	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseReplyRequiresText(t *testing.T) {
	_, err := Parse("reply   ")
	require.Error(t, err)
}

func TestParseUnlockRequiresDollarPrefix(t *testing.T) {
	_, err := Parse("unlock a1")
	require.Error(t, err)
}

func TestParseUnlockRequiresPointerID(t *testing.T) {
	_, err := Parse("unlock")
	require.Error(t, err)
}

func TestParseUnknownVerb(t *testing.T) {
	_, err := Parse("frobnicate stuff")
	require.Error(t, err)
}

func TestKindStringNames(t *testing.T) {
	assert.Equal(t, "ask", Ask.String())
	assert.Equal(t, "reply", Reply.String())
	assert.Equal(t, "unlock", Unlock.String())
	assert.Equal(t, "scratch", Scratch.String())
}
