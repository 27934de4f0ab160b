package generate

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jptrs93/cleants/internal/ir"
)

var (
	ErrInvalidOutPath  = errors.New("invalid output path")
	ErrIncludeCycle    = errors.New("include cycle")
	ErrOutPathConflict = errors.New("output path conflict")
)

// FileError is the failure of one top-level file under the Collect policy.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// BatchError lists the files that failed, in input order.
type BatchError struct {
	Files []FileError
}

func (e *BatchError) Error() string {
	msgs := make([]string, 0, len(e.Files))
	for _, f := range e.Files {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%d file(s) failed to generate:\n  %s", len(e.Files), strings.Join(msgs, "\n  "))
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Files))
	for _, f := range e.Files {
		errs = append(errs, f)
	}
	return errs
}

func newBatchError(files []*ir.ResolvedFile, errs []error) *BatchError {
	var batch *BatchError
	for i, err := range errs {
		if err == nil {
			continue
		}
		if batch == nil {
			batch = &BatchError{}
		}
		batch.Files = append(batch.Files, FileError{Path: files[i].Path, Err: err})
	}
	return batch
}
