package replay

import "errors"

// ErrInvalidOrdering is returned when the log is not in (seq, index) order.
var ErrInvalidOrdering = errors.New("event log is not in (seq, index) order")
