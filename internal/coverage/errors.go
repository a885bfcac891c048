package coverage

import (
	"errors"

	"github.com/smukkama/coverage-server/internal/geoframe"
	"github.com/smukkama/coverage-server/internal/tasks"
)

// Error kinds recorded with failed task results.
const (
	KindInvalidRequest = "InvalidRequestError"
	KindEncoding       = "EncodingError"
	KindDecoding       = "DecodingError"
	KindAnalysis       = "AnalysisError"
)

// InvalidRequestError means the task arguments could not be parsed into a
// request. Retrying the same arguments fails the same way.
type InvalidRequestError struct {
	Err error
}

func (e *InvalidRequestError) Error() string { return e.Err.Error() }
func (e *InvalidRequestError) Unwrap() error { return e.Err }
func (e *InvalidRequestError) Kind() string  { return KindInvalidRequest }

// AnalysisError wraps a failure raised by an orbital primitive.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string { return e.Err.Error() }
func (e *AnalysisError) Unwrap() error { return e.Err }
func (e *AnalysisError) Kind() string  { return KindAnalysis }

// Kind classifies err for the result backend. Taxonomy errors are checked
// in order, so a DecodingError wrapped as an invalid request reports
// InvalidRequestError.
func Kind(err error) string {
	var (
		invalid  *InvalidRequestError
		analysis *AnalysisError
		encoding *geoframe.EncodingError
		decoding *geoframe.DecodingError
	)
	switch {
	case errors.As(err, &invalid):
		return KindInvalidRequest
	case errors.As(err, &analysis):
		return KindAnalysis
	case errors.As(err, &encoding):
		return KindEncoding
	case errors.As(err, &decoding):
		return KindDecoding
	}
	return tasks.ErrorKind(err)
}
