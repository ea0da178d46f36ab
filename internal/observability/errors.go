package observability

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/pengxu9-rgb/Pivota-catalog-intelligence/internal/httpx"
)

const (
	ErrorTimeout    = "timeout"
	ErrorConnection = "connection"
	ErrorHTTPStatus = "http_status"
	ErrorRobots     = "robots"
	ErrorParse      = "parse"
	ErrorOther      = "other"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorOther
	}
	if errors.Is(err, httpx.ErrRobotsDisallowed) {
		return ErrorRobots
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrorTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		if fe.Status > 0 {
			return ErrorHTTPStatus
		}
		return ErrorConnection
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return ErrorConnection
	}
	return ErrorOther
}

func ClassifyHarvestError(err error) string {
	if err == nil {
		return ErrorOther
	}
	if kind := ClassifyFetchError(err); kind != ErrorOther {
		return kind
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse failed") ||
		strings.Contains(msg, "decode failed") ||
		strings.Contains(msg, "unmarshal") ||
		strings.Contains(msg, "invalid character") {
		return ErrorParse
	}
	return ErrorOther
}
