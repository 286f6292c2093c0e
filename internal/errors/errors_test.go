package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = stderrors.New("sentinel")

func TestWrapKeepsCode(t *testing.T) {
	base := WithCode(CodeSchemaError, errSentinel)
	wrapped := Wrap(base, "loading tables")

	assert.Equal(t, CodeSchemaError, GetCode(wrapped))
	assert.ErrorIs(t, wrapped, errSentinel)
	assert.Equal(t, "loading tables: sentinel", wrapped.Error())
}

func TestWrapPlainError(t *testing.T) {
	wrapped := Wrapf(errSentinel, "metric %d", 3)

	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Equal(t, "metric 3: sentinel", wrapped.Error())
}

func TestNilPassthrough(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	assert.Nil(t, Wrapf(nil, "x %s", "y"))
	assert.Nil(t, WithCode(CodeNotFound, nil))
}

func TestGetCodeUnknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", GetCode(errSentinel))
	assert.Equal(t, CodeNotFound, GetCode(NotFound("session")))
}
