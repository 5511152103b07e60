package dispatch

import (
	"bytes"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/always-cache/easyfetch/envelope"
	"github.com/always-cache/easyfetch/request"
)

type item struct {
	Msg string `json:"msg"`
}

type recorder[T any] struct {
	values []T
	errs   []*envelope.Error
}

func (r *recorder[T]) callback() *request.TypedCallback[T] {
	return request.NewCallback(
		func(v T, _ *envelope.Response) { r.values = append(r.values, v) },
		func(e *envelope.Error) { r.errs = append(r.errs, e) },
	)
}

func newDispatcher() *Dispatcher {
	return NewDispatcher(NewRegistry(), zerolog.Nop())
}

func jsonResponse(body string) *envelope.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &envelope.Response{StatusCode: 200, Data: []byte(body), Headers: h}
}

func TestStructuralDecode(t *testing.T) {
	rec := &recorder[item]{}
	require.NoError(t, newDispatcher().Dispatch(rec.callback(), jsonResponse(`{"msg":"hi"}`)))
	require.Len(t, rec.values, 1)
	assert.Equal(t, "hi", rec.values[0].Msg)
	assert.Empty(t, rec.errs)
}

func TestBuiltinDecoders(t *testing.T) {
	d := newDispatcher()

	str := &recorder[string]{}
	require.NoError(t, d.Dispatch(str.callback(), jsonResponse(`plain`)))
	assert.Equal(t, []string{"plain"}, str.values)

	obj := &recorder[JSONObject]{}
	require.NoError(t, d.Dispatch(obj.callback(), jsonResponse(`{"a":1}`)))
	require.Len(t, obj.values, 1)
	assert.Equal(t, float64(1), obj.values[0]["a"])

	arr := &recorder[JSONArray]{}
	require.NoError(t, d.Dispatch(arr.callback(), jsonResponse(`[1,"two"]`)))
	require.Len(t, arr.values, 1)
	assert.Len(t, arr.values[0], 2)

	wrong := &recorder[JSONArray]{}
	require.NoError(t, d.Dispatch(wrong.callback(), jsonResponse(`{"a":1}`)))
	assert.Empty(t, wrong.values)
	require.Len(t, wrong.errs, 1)
}

func TestDecoderOverride(t *testing.T) {
	d := newDispatcher()
	calls := 0
	RegisterDecoderFor(d.Registry(), func(body string) (item, error) {
		calls++
		return item{Msg: strings.ToUpper(body)}, nil
	})
	rec := &recorder[item]{}
	require.NoError(t, d.Dispatch(rec.callback(), jsonResponse(`x`)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "X", rec.values[0].Msg)

	// a later registration wins over a built-in
	d.Registry().RegisterDecoder(reflect.TypeFor[string](), DecoderFunc(func(string) (any, error) {
		return "overridden", nil
	}))
	str := &recorder[string]{}
	require.NoError(t, d.Dispatch(str.callback(), jsonResponse(`plain`)))
	assert.Equal(t, []string{"overridden"}, str.values)
}

func TestDecodeFailure(t *testing.T) {
	rec := &recorder[item]{}
	require.NoError(t, newDispatcher().Dispatch(rec.callback(), jsonResponse(`{"msg":`)))
	assert.Empty(t, rec.values)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, errors.CodeSchemaFailed, rec.errs[0].Code())
	assert.Contains(t, rec.errs[0].Message, "dispatch.item")
	assert.Equal(t, 200, rec.errs[0].StatusCode)
}

func TestUntypedCallback(t *testing.T) {
	rec := &recorder[any]{}
	err := newDispatcher().Dispatch(rec.callback(), jsonResponse(`{}`))
	assert.ErrorIs(t, err, request.ErrUntypedCallback)
	assert.Empty(t, rec.values)
	assert.Empty(t, rec.errs)
}

func TestNilCallback(t *testing.T) {
	assert.NoError(t, newDispatcher().Dispatch(nil, jsonResponse(`{}`)))
}

func TestInterceptorOrder(t *testing.T) {
	d := newDispatcher()
	var order []string
	d.Registry().AddResponseInterceptor(ResponseInterceptorFunc(func(res *envelope.Response) *envelope.Response {
		order = append(order, "A")
		return res
	}))
	d.Registry().AddResponseInterceptor(ResponseInterceptorFunc(func(res *envelope.Response) *envelope.Response {
		order = append(order, "B")
		return nil
	}))
	rec := &recorder[string]{}
	require.NoError(t, d.Dispatch(rec.callback(), jsonResponse(`ok`)))
	assert.Equal(t, "A,B", strings.Join(order, ","))
	assert.Equal(t, []string{"ok"}, rec.values)

	var reqOrder []string
	d.Registry().AddRequestInterceptor(RequestInterceptorFunc(func(desc *request.Descriptor) *request.Descriptor {
		reqOrder = append(reqOrder, "A")
		desc.Headers["X-A"] = "1"
		return desc
	}))
	d.Registry().AddRequestInterceptor(RequestInterceptorFunc(func(desc *request.Descriptor) *request.Descriptor {
		reqOrder = append(reqOrder, "B")
		return desc
	}))
	desc := d.Registry().InterceptRequest(&request.Descriptor{Headers: map[string]string{}})
	assert.Equal(t, "A,B", strings.Join(reqOrder, ","))
	assert.Equal(t, "1", desc.Headers["X-A"])
}

func gzipped(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestGzipFirst(t *testing.T) {
	d := newDispatcher()
	var seen string
	d.Registry().AddResponseInterceptor(ResponseInterceptorFunc(func(res *envelope.Response) *envelope.Response {
		seen = string(res.Data)
		return res
	}))
	res := jsonResponse("")
	res.Data = gzipped(t, `{"msg":"zipped"}`)
	res.Headers.Set("Content-Encoding", "gzip")
	rec := &recorder[item]{}
	require.NoError(t, d.Dispatch(rec.callback(), res))
	assert.Equal(t, `{"msg":"zipped"}`, seen)
	require.Len(t, rec.values, 1)
	assert.Equal(t, "zipped", rec.values[0].Msg)

	// idempotent on already inflated data
	out := GzipInterceptor{}.InterceptResponse(GzipInterceptor{}.InterceptResponse(res))
	assert.Equal(t, `{"msg":"zipped"}`, string(out.Data))
	assert.Empty(t, out.Header("Content-Encoding"))
}

func TestCharset(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=ISO-8859-1")
	res := &envelope.Response{Data: []byte{'c', 'a', 'f', 0xe9}, Headers: h}
	assert.Equal(t, "café", BodyString(res))

	h.Set("Content-Type", "text/plain")
	assert.Equal(t, "caf\xe9", BodyString(res))

	h.Set("Content-Type", "text/plain; charset=made-up")
	assert.Equal(t, "caf\xe9", BodyString(res))
}

func TestPostExactlyOnce(t *testing.T) {
	d := newDispatcher()
	rec := &recorder[item]{}
	desc := &request.Descriptor{ID: "1", Callback: rec.callback()}
	d.PostResponse(desc, jsonResponse(`{"msg":"one"}`))
	d.PostResponse(desc, jsonResponse(`{"msg":"two"}`))
	d.PostError(desc, envelope.NoCache())
	assert.Len(t, rec.values, 1)
	assert.Empty(t, rec.errs)
	assert.Equal(t, `{"msg":"one"}`, string(desc.Response().Data))

	other := &request.Descriptor{ID: "2", Callback: rec.callback()}
	d.PostError(other, nil)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, envelope.MessageSomethingWent, rec.errs[0].Message)
}

func TestDecoderPanicDeliversError(t *testing.T) {
	d := newDispatcher()
	RegisterDecoderFor(d.Registry(), func(string) (item, error) {
		panic("broken decoder")
	})
	rec := &recorder[item]{}
	desc := &request.Descriptor{ID: "1", Callback: rec.callback()}
	d.PostResponse(desc, jsonResponse(`{"msg":"hi"}`))

	assert.True(t, desc.Delivered())
	assert.Empty(t, rec.values)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, errors.CodeSchemaFailed, rec.errs[0].Code())
	assert.Contains(t, rec.errs[0].Message, "broken decoder")
}

func TestInterceptorPanicDeliversError(t *testing.T) {
	d := newDispatcher()
	d.Registry().AddResponseInterceptor(ResponseInterceptorFunc(func(*envelope.Response) *envelope.Response {
		panic("broken interceptor")
	}))
	rec := &recorder[string]{}
	desc := &request.Descriptor{ID: "1", Callback: rec.callback()}
	d.PostResponse(desc, jsonResponse(`plain`))

	assert.Empty(t, rec.values)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, 200, rec.errs[0].StatusCode)
}

func TestDecoderWrongType(t *testing.T) {
	d := newDispatcher()
	d.Registry().RegisterDecoder(reflect.TypeFor[string](), DecoderFunc(func(string) (any, error) {
		return 42, nil
	}))
	rec := &recorder[string]{}
	require.NoError(t, d.Dispatch(rec.callback(), jsonResponse(`plain`)))
	assert.Empty(t, rec.values)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, errors.CodeSchemaFailed, rec.errs[0].Code())
	assert.Contains(t, rec.errs[0].Message, "int")

	d.Registry().RegisterDecoder(reflect.TypeFor[int](), DecoderFunc(func(string) (any, error) {
		return nil, nil
	}))
	ints := &recorder[int]{}
	require.NoError(t, d.Dispatch(ints.callback(), jsonResponse(`1`)))
	assert.Empty(t, ints.values)
	assert.Len(t, ints.errs, 1)

	// nil fits a pointer
	RegisterDecoderFor(d.Registry(), func(string) (*item, error) { return nil, nil })
	ptrs := &recorder[*item]{}
	require.NoError(t, d.Dispatch(ptrs.callback(), jsonResponse(`null`)))
	assert.Len(t, ptrs.values, 1)
	assert.Empty(t, ptrs.errs)
}

func TestRawBytes(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=iso-8859-1")
	raw := []byte{'c', 'a', 'f', 0xe9}
	rec := &recorder[[]byte]{}
	require.NoError(t, newDispatcher().Dispatch(rec.callback(), &envelope.Response{StatusCode: 200, Data: raw, Headers: h}))
	require.Len(t, rec.values, 1)
	assert.Equal(t, raw, rec.values[0])
}
