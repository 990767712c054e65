package vec

import "errors"

// ErrCapacityOverflow is the panic value when capacity arithmetic overflows.
// It is fatal by contract and never returned.
var ErrCapacityOverflow = errors.New("vec: capacity overflow")
