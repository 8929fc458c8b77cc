package conversation

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies an external failure.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindAuth      Kind = "auth"
	KindQuota     Kind = "quota"
	KindMalformed Kind = "malformed"
	KindUnknown   Kind = "unknown"
)

// ExternalServiceError is the only error kind a backend call produces.
type ExternalServiceError struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *ExternalServiceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("conversation: %s %s error", e.Provider, e.Kind)
	}
	return fmt.Sprintf("conversation: %s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newExternalError(provider string, err error) *ExternalServiceError {
	return &ExternalServiceError{Provider: provider, Kind: classify(err), Err: err}
}

func malformed(provider string, err error) *ExternalServiceError {
	return &ExternalServiceError{Provider: provider, Kind: KindMalformed, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Aborted:
			return KindNetwork
		case codes.Unauthenticated, codes.PermissionDenied:
			return KindAuth
		case codes.ResourceExhausted:
			return KindQuota
		case codes.DataLoss, codes.Internal:
			return KindMalformed
		}
	}

	var coder httpStatusCoder
	if errors.As(err, &coder) {
		switch code := coder.HTTPStatusCode(); {
		case code == 401 || code == 403:
			return KindAuth
		case code == 429:
			return KindQuota
		case code >= 500:
			return KindNetwork
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}
