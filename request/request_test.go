package request

import (
	"sync"
	"testing"
	"time"

	"github.com/always-cache/easyfetch/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Msg string `json:"msg"`
}

func TestResolveType(t *testing.T) {
	typ, err := ResolveType(NewCallback[item](nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "item", typ.Name())

	_, err = ResolveType(NewCallback[any](nil, nil))
	assert.ErrorIs(t, err, ErrUntypedCallback)

	_, err = ResolveType(NewCallback[interface{}](nil, nil))
	assert.ErrorIs(t, err, ErrUntypedCallback)
}

func TestTypedCallback(t *testing.T) {
	var got item
	var gotErr *envelope.Error
	cb := NewCallback(func(v item, _ *envelope.Response) { got = v }, func(e *envelope.Error) { gotErr = e })
	cb.Success(item{Msg: "hi"}, &envelope.Response{})
	assert.Equal(t, "hi", got.Msg)
	cb.Error(envelope.NoCache())
	require.NotNil(t, gotErr)
	assert.Equal(t, envelope.MessageNoCache, gotErr.Message)
}

func TestClaimOnce(t *testing.T) {
	d := &Descriptor{}
	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Claim() {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claims)
	assert.True(t, d.Delivered())
}

func TestPolicy(t *testing.T) {
	assert.True(t, PolicyDefault.ReadsCache())
	assert.True(t, PolicyDefault.WritesCache())
	assert.False(t, PolicyNoCache.ReadsCache())
	assert.False(t, PolicyNoCache.WritesCache())
	assert.False(t, PolicyIgnoreReadButWriteCache.ReadsCache())
	assert.True(t, PolicyIgnoreReadButWriteCache.WritesCache())

	p, err := ParsePolicy("IGNORE_READ_BUT_WRITE_CACHE")
	require.NoError(t, err)
	assert.Equal(t, PolicyIgnoreReadButWriteCache, p)
	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestAttemptTimeout(t *testing.T) {
	r := RetryPolicy{Timeout: time.Second, MaxRetries: 2, BackoffMultiplier: 1}
	assert.Equal(t, time.Second, r.AttemptTimeout(0))
	assert.Equal(t, 2*time.Second, r.AttemptTimeout(1))
	assert.Equal(t, 4*time.Second, r.AttemptTimeout(2))
}

func TestDescriptorBody(t *testing.T) {
	d := &Descriptor{Params: map[string]string{"b": "2", "a": "1"}}
	assert.Equal(t, "a=1&b=2", d.EncodedParams())
	assert.True(t, d.HasBody())
	assert.Contains(t, d.ContentType(), "x-www-form-urlencoded")

	d.Headers = map[string]string{"content-type": "text/plain"}
	assert.Equal(t, "text/plain", d.ContentType())
}
