// SPDX-License-Identifier: GPL-3.0-or-later

package target

import "errors"

// ErrInvalidExpression signals malformed target or port syntax (§4.1).
var ErrInvalidExpression = errors.New("target: invalid expression")

// ErrUnresolvable signals a hostname with no DNS records (§4.1).
var ErrUnresolvable = errors.New("target: unresolvable hostname")

var (
	errRangeFamilyMismatch = errors.New("target: range bounds mix address families")
	errRangeOrder          = errors.New("target: range high bound precedes low bound")
)
