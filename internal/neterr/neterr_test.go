package neterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(Io, nil, "anything"))
	assert.Nil(t, IoErr(nil, "anything"))
}

func TestWrapCarriesCauseAndKind(t *testing.T) {
	cause := errors.New("boom")
	err := IoErr(cause, "read frame")
	require.NotNil(t, err)
	assert.Equal(t, Io, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "read frame")
	assert.Contains(t, err.Error(), "boom")
}

func TestNewHasNoCause(t *testing.T) {
	err := New(Config, "bad argument")
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "config: bad argument", err.Error())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "io", Io.String())
	assert.Equal(t, "protocol", Protocol.String())
	assert.Equal(t, "device", Device.String())
	assert.Equal(t, "config", Config.String())
	assert.Equal(t, "exhaustion", Exhaustion.String())
}

func TestErrorsAsRecoversKind(t *testing.T) {
	err := error(ProtocolErr(errors.New("bad magic"), "hello"))
	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, Protocol, target.Kind)
}
