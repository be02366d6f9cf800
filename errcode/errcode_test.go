package errcode

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(New(NotFound, "missing")))
	assert.Equal(t, Internal, KindOf(errors.New("untagged")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := New(Conflict, "duplicate attestation")
	wrapped := errors.Wrap(err, "could not store attestation")
	assert.Equal(t, Conflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, Conflict))
	assert.False(t, Is(wrapped, Validation))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ChainUnavailable, "dial failed"))
}

func TestWrapTagsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ChainUnavailable, "could not dial chain RPC")
	assert.True(t, Is(err, ChainUnavailable))
	assert.Contains(t, err.Error(), "could not dial chain RPC")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsNil(t *testing.T) {
	assert.False(t, Is(nil, Internal))
}
