package errors

// Classification for HTTP downloads and Google API calls

import (
	"context"
	stderrs "errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"google.golang.org/api/googleapi"
)

// ErrRejected marks a download the source answered with a status that
// retrying will not change
var ErrRejected = New(ErrorCodeUpstream, "rejected by source")

// IsRejected reports whether err carries a FromStatus rejection
func IsRejected(err error) bool { return stderrs.Is(err, ErrRejected) }

// FromStatus builds an error for a non-success HTTP status. 429 and 5xx get
// codes Retryable accepts, everything else is an Upstream ErrRejected
func FromStatus(status int, url string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return Newf(ErrorCodeTooManyRequests, "GET %s: status %d", url, status)
	case status >= 500:
		return Newf(ErrorCodeUnavailable, "GET %s: status %d", url, status)
	default:
		return Wrapf(ErrRejected, ErrorCodeUpstream, "GET %s: status %d", url, status)
	}
}

// FromRemote wraps a transport or SDK error with a code derived from it
func FromRemote(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return WithOp(err, msg)
	}
	var ne net.Error
	switch {
	case stderrs.Is(err, context.DeadlineExceeded), stderrs.As(err, &ne) && ne.Timeout():
		return Wrap(err, ErrorCodeTimeout, msg)
	case stderrs.Is(err, context.Canceled):
		return Wrap(err, ErrorCodeUnknown, msg)
	case isTransport(err):
		return Wrap(err, ErrorCodeUnavailable, msg)
	}
	var ge *googleapi.Error
	if stderrs.As(err, &ge) {
		switch {
		case ge.Code == http.StatusNotFound:
			return Wrap(err, ErrorCodeNotFound, msg)
		case ge.Code == http.StatusConflict:
			return Wrap(err, ErrorCodeConflict, msg)
		case ge.Code == http.StatusUnauthorized:
			return Wrap(err, ErrorCodeUnauthorized, msg)
		case ge.Code == http.StatusForbidden:
			return Wrap(err, ErrorCodeForbidden, msg)
		case ge.Code == http.StatusTooManyRequests:
			return Wrap(err, ErrorCodeTooManyRequests, msg)
		case ge.Code >= 500:
			return Wrap(err, ErrorCodeUnavailable, msg)
		}
	}
	return Wrap(err, ErrorCodeUpstream, msg)
}

// isTransport reports connection level failures: refused or reset
// connections, DNS lookups and bodies cut short
func isTransport(err error) bool {
	var oe *net.OpError
	var de *net.DNSError
	return stderrs.As(err, &oe) || stderrs.As(err, &de) ||
		stderrs.Is(err, syscall.ECONNREFUSED) || stderrs.Is(err, syscall.ECONNRESET) ||
		stderrs.Is(err, io.ErrUnexpectedEOF)
}

// IsRemoteRetryable reports transient network and Google API failures
func IsRemoteRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if stderrs.As(err, &ne) && ne.Timeout() {
		return true
	}
	if stderrs.Is(err, syscall.ECONNRESET) || stderrs.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ge *googleapi.Error
	if stderrs.As(err, &ge) {
		return ge.Code == http.StatusTooManyRequests || ge.Code >= 500
	}
	return false
}
