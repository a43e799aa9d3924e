// Package maybe provides Option, a value that is either present or absent.
//
// Option composes fallible steps without sentinel values or error plumbing:
// a step that finds nothing returns None and every later step is skipped.
// Get is the only operation that is not total; it panics with ErrAbsent
// and should only be used where presence has already been established.
package maybe

import (
	"errors"
	"fmt"
)

// ErrAbsent is the panic value of Get on an empty Option
var ErrAbsent = errors.New("maybe: absent value accessed")

// Option holds a value of type T or nothing. The zero value is empty.
type Option[T any] struct {
	value T
	ok    bool
}

// Some returns an Option holding v
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, ok: true}
}

// None returns an empty Option
func None[T any]() Option[T] {
	return Option[T]{}
}

// FromOK adapts the comma-ok idiom
func FromOK[T any](v T, ok bool) Option[T] {
	if !ok {
		return None[T]()
	}
	return Some(v)
}

// IsEmpty reports whether o holds no value
func (o Option[T]) IsEmpty() bool {
	return !o.ok
}

// IsPresent reports whether o holds a value
func (o Option[T]) IsPresent() bool {
	return o.ok
}

// Get returns the held value and panics with ErrAbsent if there is none
func (o Option[T]) Get() T {
	if !o.ok {
		panic(ErrAbsent)
	}
	return o.value
}

// GetOrDefault returns the held value or def
func (o Option[T]) GetOrDefault(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

// GetOrCompute returns the held value, calling f only when o is empty
func (o Option[T]) GetOrCompute(f func() T) T {
	if !o.ok {
		return f()
	}
	return o.value
}

// OrElse returns o unchanged when present, otherwise the result of f
func (o Option[T]) OrElse(f func() Option[T]) Option[T] {
	if o.ok {
		return o
	}
	return f()
}

func (o Option[T]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.value)
}

// Map applies f to the held value. f is not called on an empty Option.
func Map[T, A any](o Option[T], f func(T) A) Option[A] {
	if !o.ok {
		return None[A]()
	}
	return Some(f(o.value))
}

// Bind applies f to the held value and returns its result as is
func Bind[T, A any](o Option[T], f func(T) Option[A]) Option[A] {
	if !o.ok {
		return None[A]()
	}
	return f(o.value)
}

// Either folds o into an A using onPresent or onAbsent
func Either[T, A any](o Option[T], onPresent func(T) A, onAbsent func() A) A {
	if !o.ok {
		return onAbsent()
	}
	return onPresent(o.value)
}
