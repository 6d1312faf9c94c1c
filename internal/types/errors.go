package types

import (
	"errors"
	"fmt"
)

var (
	ErrDiscovery       = errors.New("no candidate clips found")
	ErrNoReadableClips = errors.New("no readable clips found")

	ErrReframe     = errors.New("reframe failed")
	ErrComposition = errors.New("composition failed")
	ErrEncoding    = errors.New("encoding failed")

	ErrUploadFatal = errors.New("upload failed")
)

type Stage string

const (
	StageReframe Stage = "reframe"
	StageCompose Stage = "compose"
	StageEncode  Stage = "encode"
)

// StageError attributes a fatal transform failure to a pipeline stage.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool {
	switch target {
	case ErrReframe:
		return e.Stage == StageReframe
	case ErrComposition:
		return e.Stage == StageCompose
	case ErrEncoding:
		return e.Stage == StageEncode
	}
	return false
}

// UploadError is a single failed upload request.
type UploadError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("upload %s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("upload %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("upload %s: HTTP %d", e.Op, e.StatusCode)
	}
}

func (e *UploadError) Unwrap() error { return e.Err }

// Transient reports whether retrying the request may succeed: network
// failures, 5xx and 429 are transient, everything else is permanent.
func (e *UploadError) Transient() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsTransientUpload reports whether err is a retryable upload failure.
func IsTransientUpload(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue) && ue.Transient()
}
