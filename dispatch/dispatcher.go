package dispatch

import (
	"fmt"
	"reflect"

	"github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"

	"github.com/always-cache/easyfetch/envelope"
	"github.com/always-cache/easyfetch/pkg/metrics"
	"github.com/always-cache/easyfetch/request"
)

// Dispatcher decodes responses for callbacks. It also implements the
// delivery side of both the network and cache-only paths.
type Dispatcher struct {
	registry *Registry
	log      zerolog.Logger
}

// NewDispatcher returns a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger zerolog.Logger) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{
		registry: registry,
		log:      logger.With().Str("component", "dispatch").Logger(),
	}
}

// Registry returns the registry used by the dispatcher.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs res through the response interceptors, decodes it into the
// callback's declared type and invokes exactly one of its methods.
// A nil callback is a no-op. An untyped callback is returned as an error
// and the callback is not invoked.
func (d *Dispatcher) Dispatch(cb request.Callback, res *envelope.Response) error {
	if cb == nil {
		return nil
	}
	t, err := request.ResolveType(cb)
	if err != nil {
		return err
	}
	d.deliver(cb, t, res)
	return nil
}

func (d *Dispatcher) deliver(cb request.Callback, t reflect.Type, res *envelope.Response) {
	if res == nil {
		res = &envelope.Response{}
	}
	res, value, err := d.prepare(t, res)
	if err != nil {
		d.log.Debug().Err(err).Str("type", t.String()).Msg("Could not decode response")
		metrics.RecordDelivery("decode_error")
		e := envelope.DecodeFailure(err, t.String())
		e.StatusCode = res.StatusCode
		e.NetworkTime = res.NetworkTime
		e.Data = res.Data
		e.Headers = res.Headers
		cb.Error(e)
		return
	}
	metrics.RecordDelivery("success")
	cb.Success(value, res)
}

// prepare runs the response interceptors and the decoder. A panic in either
// is returned as an error so the callback still gets its one delivery.
func (d *Dispatcher) prepare(t reflect.Type, in *envelope.Response) (res *envelope.Response, value any, err error) {
	res = in
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("type", t.String()).Msg("Panic while decoding response")
			value, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	res = d.registry.InterceptResponse(in)
	value, err = d.decode(t, res)
	if err != nil {
		return res, nil, err
	}
	if err := checkAssignable(value, t); err != nil {
		return res, nil, err
	}
	return res, value, nil
}

// checkAssignable rejects decoder results that do not fit the declared
// type. nil is accepted only where t can hold it.
func checkAssignable(value any, t reflect.Type) error {
	if value == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
			return nil
		}
		return fmt.Errorf("decoder returned nil for %s", t)
	}
	if vt := reflect.TypeOf(value); !vt.AssignableTo(t) {
		return fmt.Errorf("decoder returned %s, not assignable to %s", vt, t)
	}
	return nil
}

var bytesType = reflect.TypeFor[[]byte]()

func (d *Dispatcher) decode(t reflect.Type, res *envelope.Response) (any, error) {
	if decoder, ok := d.registry.Decoder(t); ok {
		return decoder.Decode(BodyString(res))
	}
	if t == bytesType {
		// raw body, before charset decoding
		return append([]byte{}, res.Data...), nil
	}
	return decodeStructural(BodyString(res), t)
}

// PostResponse delivers a successful response for a descriptor. The
// response is attached to the descriptor before delivery.
func (d *Dispatcher) PostResponse(desc *request.Descriptor, res *envelope.Response) {
	if desc.Callback == nil {
		desc.Claim()
		desc.Attach(res)
		return
	}
	t, err := request.ResolveType(desc.Callback)
	if err != nil {
		// rejected at submission; reaching this is a programming error
		d.log.Error().Err(err).Str("id", desc.ID).Msg("Could not deliver response")
		return
	}
	if !desc.Claim() {
		d.log.Warn().Str("id", desc.ID).Msg("Dropping second delivery")
		return
	}
	desc.Attach(res)
	d.log.Debug().Str("id", desc.ID).Uint64("seq", desc.Sequence).Int("status", res.StatusCode).Msg("Delivering response")
	d.deliver(desc.Callback, t, res)
}

// PostError delivers an error for a descriptor.
func (d *Dispatcher) PostError(desc *request.Descriptor, e *envelope.Error) {
	if !desc.Claim() {
		d.log.Warn().Str("id", desc.ID).Msg("Dropping second delivery")
		return
	}
	if e == nil {
		e = envelope.NewError(errors.CodeUnknown, "")
	}
	d.log.Debug().Str("id", desc.ID).Uint64("seq", desc.Sequence).Str("error", e.Message).Msg("Delivering error")
	metrics.RecordDelivery("error")
	if desc.Callback != nil {
		desc.Callback.Error(e)
	}
}
