package lunaerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UnwrapChain(t *testing.T) {
	root := errors.New("connection refused")
	wrapped := Wrap(BackendUnavailable, "llmclient.Complete", root)

	assert.True(t, errors.Is(wrapped, root))
	assert.True(t, Is(wrapped, BackendUnavailable))
	assert.False(t, Is(wrapped, ParseError))
}

func TestError_Message(t *testing.T) {
	err := New(CFIASplitError, "cfia.CommitSplit", errors.New("shard overflow"))
	assert.Equal(t, "cfia.CommitSplit: cfia_split_error: shard overflow", err.Error())
}

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.Nil(t, Wrap(StateIOError, "op", nil))
}

func TestErrorsAs_RecoversKindAndOp(t *testing.T) {
	err := fmt.Errorf("outer context: %w", New(Inconsistency, "cfia.UpdateKarmaPool", nil))

	var lunaErr *Error
	assert.True(t, errors.As(err, &lunaErr))
	assert.Equal(t, Inconsistency, lunaErr.Kind)
	assert.Equal(t, "cfia.UpdateKarmaPool", lunaErr.Op)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "backend_malformed", BackendMalformed.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
