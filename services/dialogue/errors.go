package dialogue

import "errors"

// ErrIllegalTransition means a phase change is missing from the table.
var ErrIllegalTransition = errors.New("illegal phase transition")
