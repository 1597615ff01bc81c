//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/errclass.go
//

// Package neterr classifies network errors for the error handling design
// (§7): the rate controller and scan state machines need to know, per
// failed send or probe, whether the failure is transient (retry with
// backoff) or permanent (record filtered, never retry).
package neterr

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// Class names. These intentionally mirror POSIX errno names so that
// structured logs read the same across platforms.
const (
	EGeneric         = "EGENERIC"
	EAddrNotAvail    = "EADDRNOTAVAIL"
	EAddrInUse       = "EADDRINUSE"
	EConnAborted     = "ECONNABORTED"
	EConnRefused     = "ECONNREFUSED"
	EConnReset       = "ECONNRESET"
	EHostUnreach     = "EHOSTUNREACH"
	EInval           = "EINVAL"
	EIntr            = "EINTR"
	ENetDown         = "ENETDOWN"
	ENetUnreach      = "ENETUNREACH"
	ENoBufs          = "ENOBUFS"
	ENotConn         = "ENOTCONN"
	EProtoNoSupport  = "EPROTONOSUPPORT"
	ETimedOut        = "ETIMEDOUT"
	EAgain           = "EAGAIN"
	ENXDomain        = "ENONAME"
	ECanceled        = "ECANCELED"
)

// Classify maps err to a short class name. A nil error classifies as "".
// Unrecognized errors classify as [EGeneric] rather than "", so callers
// can distinguish "no error" from "error we don't have a name for".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ECanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return ETimedOut
	case errors.Is(err, net.ErrClosed):
		return EConnAborted
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return ENXDomain
		}
		if dnsErr.IsTimeout {
			return ETimedOut
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if class, ok := classifyErrno(errno); ok {
			return class
		}
	}

	return EGeneric
}

// IsTransient reports whether class names a condition the sender should
// retry after backoff rather than record as a terminal port state:
// ENOBUFS, EAGAIN, EINTR (§7's "NetworkError (transient)").
func IsTransient(class string) bool {
	switch class {
	case ENoBufs, EAgain, EIntr:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether class names a condition that should be
// recorded as filtered for the specific (address, port) and never
// retried (§7's "NetworkError (permanent)").
func IsPermanent(class string) bool {
	switch class {
	case EHostUnreach, ENetUnreach, ENetDown, EConnRefused, EConnReset:
		return true
	default:
		return false
	}
}

func classifyErrno(errno syscall.Errno) (string, bool) {
	switch errno {
	case errEADDRNOTAVAIL:
		return EAddrNotAvail, true
	case errEADDRINUSE:
		return EAddrInUse, true
	case errECONNABORTED:
		return EConnAborted, true
	case errECONNREFUSED:
		return EConnRefused, true
	case errECONNRESET:
		return EConnReset, true
	case errEHOSTUNREACH:
		return EHostUnreach, true
	case errEINVAL:
		return EInval, true
	case errEINTR:
		return EIntr, true
	case errENETDOWN:
		return ENetDown, true
	case errENETUNREACH:
		return ENetUnreach, true
	case errENOBUFS:
		return ENoBufs, true
	case errENOTCONN:
		return ENotConn, true
	case errEPROTONOSUPPORT:
		return EProtoNoSupport, true
	case errETIMEDOUT:
		return ETimedOut, true
	case errEAGAIN:
		return EAgain, true
	default:
		return "", false
	}
}
