package host

import (
	"fmt"

	"docforge/internal/faults"
)

// FailureSink receives swallowed host call failures. The audit recorder
// implements it; tests use a slice-backed fake.
type FailureSink interface {
	Exception(tag string, err error)
}

// Try runs a host call best-effort: an error or panic is recorded on the
// sink as a HostApiFailure and the zero value is returned with ok=false.
// This is the one place the try-ignore-fallback idiom lives; call sites
// pick a fallback instead of repeating inline recovery.
func Try[T any](sink FailureSink, op string, fn func() (T, error)) (val T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			record(sink, op, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()
	v, err := fn()
	if err != nil {
		record(sink, op, err)
		var zero T
		return zero, false
	}
	return v, true
}

// Try0 is Try for calls without a result.
func Try0(sink FailureSink, op string, fn func() error) (ok bool) {
	_, ok = Try(sink, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return ok
}

func record(sink FailureSink, op string, err error) {
	if sink == nil {
		return
	}
	sink.Exception(op, faults.HostAPI(op, err))
}
