package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCodeThroughWrapping(t *testing.T) {
	cause := errors.New("redis down")
	err := fmt.Errorf("handler: %w", Wrap(cause, CodeUnavailable, "try again"))

	assert.True(t, HasCode(err, CodeUnavailable))
	assert.False(t, HasCode(err, CodeInternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "not_found: image missing", New(CodeNotFound, "image missing").Error())
	assert.Equal(t, "internal_error: save: x", Wrap(errors.New("x"), CodeInternal, "save").Error())
}
