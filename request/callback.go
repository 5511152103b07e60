package request

import (
	"errors"
	"reflect"

	"github.com/always-cache/easyfetch/envelope"
)

// ErrUntypedCallback is returned when a callback does not declare a concrete
// result type. It is a programming error, never a delivery.
var ErrUntypedCallback = errors.New("callback has no concrete result type")

// Callback receives exactly one terminal delivery per request.
type Callback interface {
	// ResultType is the type successful responses are decoded into.
	ResultType() reflect.Type
	Success(value any, res *envelope.Response)
	Error(err *envelope.Error)
}

// ResolveType returns the declared result type of cb, or ErrUntypedCallback.
func ResolveType(cb Callback) (reflect.Type, error) {
	t := cb.ResultType()
	if t == nil || (t.Kind() == reflect.Interface && t.NumMethod() == 0) {
		return nil, ErrUntypedCallback
	}
	return t, nil
}

// TypedCallback adapts a pair of functions into a Callback for T.
type TypedCallback[T any] struct {
	OnSuccess func(T, *envelope.Response)
	OnError   func(*envelope.Error)
}

// NewCallback captures T as the declared result type.
func NewCallback[T any](onSuccess func(T, *envelope.Response), onError func(*envelope.Error)) *TypedCallback[T] {
	return &TypedCallback[T]{OnSuccess: onSuccess, OnError: onError}
}

func (c *TypedCallback[T]) ResultType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (c *TypedCallback[T]) Success(value any, res *envelope.Response) {
	if c.OnSuccess == nil {
		return
	}
	v, _ := value.(T)
	c.OnSuccess(v, res)
}

func (c *TypedCallback[T]) Error(err *envelope.Error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}
