// Package hydrate decodes untyped state subtrees into typed values.
package hydrate

import (
	"fmt"
	"time"

	"github.com/goliatone/go-store/tree"
	"github.com/mitchellh/mapstructure"
)

// Context identifies the subtree being decoded in error messages and hooks.
type Context struct {
	Path string
}

func (c Context) label() string {
	if c.Path == "" {
		return "$"
	}
	return c.Path
}

// PreHook lets callers mutate or normalise the payload before decoding. The
// payload is a private copy.
type PreHook func(Context, any) (any, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default mapstructure decoding when provided.
type CustomDecoder[T any] func(Context, any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts state subtrees into T. Field names follow json tags by
// default so the same struct serves encoding/json and the store.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	configure []func(*mapstructure.DecoderConfig)
	custom    CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithWeaklyTypedInput lets strings, numbers and booleans convert into each
// other, e.g. "42" into an int field.
func WithWeaklyTypedInput[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(cfg *mapstructure.DecoderConfig) {
		cfg.WeaklyTypedInput = true
	})
}

// WithDisallowUnknownFields fails decoding when the payload has keys that
// map to no field of T.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return WithDecoderConfig[T](func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	})
}

// WithTagName reads field names from tag instead of json.
func WithTagName[T any](tag string) DecoderOption[T] {
	return WithDecoderConfig[T](func(cfg *mapstructure.DecoderConfig) {
		cfg.TagName = tag
	})
}

// WithDecoderConfig allows callers to configure mapstructure directly.
func WithDecoderConfig[T any](configure func(*mapstructure.DecoderConfig)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.configure = append(d.configure, configure)
		}
	}
}

// WithCustomDecoder replaces the default decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T applying configured hooks. The payload is
// copied first, hooks never see the caller's tree.
func (d *Decoder[T]) Decode(ctx Context, payload any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil at %s", ctx.label())
	}

	current := tree.Clone(payload)
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook at %s failed: %w", ctx.label(), err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		decoded, err := d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder at %s failed: %w", ctx.label(), err)
		}
		result = decoded
	} else if err := d.decode(current, &result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", ctx.label(), err)
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook at %s failed: %w", ctx.label(), err)
		}
	}

	return result, nil
}

func (d *Decoder[T]) decode(input any, out *T) error {
	return decodeWith(d.configure, input, out)
}

// Into decodes a copy of payload into out, a pointer, without hooks.
func Into(ctx Context, payload any, out any) error {
	if payload == nil {
		return fmt.Errorf("hydrate: payload is nil at %s", ctx.label())
	}
	if err := decodeWith(nil, tree.Clone(payload), out); err != nil {
		return fmt.Errorf("hydrate: decode %s: %w", ctx.label(), err)
	}
	return nil
}

func decodeWith(configure []func(*mapstructure.DecoderConfig), input any, out any) error {
	cfg := &mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	}
	for _, fn := range configure {
		fn(cfg)
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
