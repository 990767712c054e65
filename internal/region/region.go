// Package region provides the zeroed backing memory for the heap region.
//
// On unix the region is an anonymous private mapping so that the heap lives
// outside the Go heap, the way a fixed physical range would on bare metal.
// Elsewhere (or when mapping is disabled) it falls back to a Go slice.
package region

import "errors"

// ErrBadSize is returned for a non-positive region size.
var ErrBadSize = errors.New("region: size must be > 0")

// Region is a fixed-size zeroed byte range plus its release hook.
type Region struct {
	data    []byte
	release func() error
}

// New returns a zeroed region of size bytes. When mapped is true and the
// platform supports it, the bytes come from an anonymous mapping.
func New(size int, mapped bool) (*Region, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	if mapped {
		data, release, err := mapAnon(size)
		if err != nil {
			return nil, err
		}
		return &Region{data: data, release: release}, nil
	}
	return &Region{data: make([]byte, size), release: func() error { return nil }}, nil
}

// Bytes returns the region memory.
func (r *Region) Bytes() []byte { return r.data }

// Len returns the region size in bytes.
func (r *Region) Len() int { return len(r.data) }

// Close releases the region. Safe to call twice.
func (r *Region) Close() error {
	if r.release == nil {
		return nil
	}
	err := r.release()
	r.release = nil
	r.data = nil
	return err
}
