package envelope

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheErrors(t *testing.T) {
	miss := NoCache()
	assert.Equal(t, MessageNoCache, miss.Message)
	assert.Equal(t, UnknownStatus, miss.StatusCode)
	assert.Equal(t, errors.CodeNotFound, miss.Code())
	assert.Zero(t, miss.NetworkTime)

	expired := CacheExpired()
	assert.Equal(t, MessageCacheExpired, expired.Message)
	assert.Equal(t, errors.CodeUnavailable, expired.Code())
}

func TestEmptyMessageDefaults(t *testing.T) {
	e := NewError(errors.CodeInternal, "")
	assert.Equal(t, MessageSomethingWent, e.Message)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	e := CacheFailure(cause)
	require.ErrorIs(t, e, cause)
	assert.Equal(t, errors.CodeDatabase, e.Code())
	assert.Contains(t, e.Message, "disk on fire")
}

func TestFromStatus(t *testing.T) {
	res := &Response{StatusCode: http.StatusServiceUnavailable, Data: []byte("down"), Headers: http.Header{}}
	e := FromStatus(res)
	assert.Equal(t, 503, e.StatusCode)
	assert.Equal(t, []byte("down"), e.Data)
	assert.Equal(t, errors.CodeUnavailable, e.Code())
	assert.True(t, e.Retryable())
	assert.Equal(t, "503 Service Unavailable (status 503)", e.Error())

	e = FromStatus(&Response{StatusCode: http.StatusBadRequest})
	assert.Equal(t, errors.CodeInvalidInput, e.Code())
	assert.False(t, e.Retryable())
}
