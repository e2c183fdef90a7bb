package volume

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/janelia-flyem/recospark/box"
)

// Accessor fetches voxels for a box from an external volume service.
// One instance serves every partition that uses it (concurrently,
// under a worker-pool runtime) and may cache credentials/connections
// across calls.
type Accessor interface {
	// Get returns a C-contiguous buffer of shape b.Shape() and a fixed
	// dtype for this accessor instance.
	Get(ctx context.Context, b box.Box) (Buffer, error)
}

// Writer is the dual of Accessor: it writes a buffer back to the
// volume service at the given global origin and scale.
type Writer interface {
	Write(ctx context.Context, origin box.Vec3, scale int, buf Buffer) error
}

// AccessorFunc adapts a plain function to the Accessor interface.
type AccessorFunc func(ctx context.Context, b box.Box) (Buffer, error)

func (f AccessorFunc) Get(ctx context.Context, b box.Box) (Buffer, error) {
	return f(ctx, b)
}

// TransientError marks an error as retry-eligible (network time-outs,
// 503/504-equivalent conditions). Everything else is treated as a
// permanent, non-retryable, fatal error.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or one it wraps) was marked transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// TransientStatus reports whether an HTTP status code is retry-eligible:
// 503 and 504. Everything else is permanent unless the caller overrides.
func TransientStatus(code int) bool {
	return code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

// isTimeout reports whether err is (or wraps) a network time-out.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
