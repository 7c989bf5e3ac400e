package usage

import "errors"

// ErrLimitReached indicates the user exceeded a monthly limit.
var ErrLimitReached = errors.New("limit reached")
