package scheduler

import (
	"context"

	"github.com/google/uuid"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/value"
)

// Request asks for the values of one variable over the half-open range
// [From, To). A change at exactly To is not part of the result.
type Request struct {
	Variable string
	From     uint64
	To       uint64
}

// Batch is a set of requests issued together, usually everything visible
// in one viewport.
type Batch struct {
	// Viewport identifies the view issuing the batch. A newer batch for the
	// same viewport cancels the older one. Empty never supersedes.
	Viewport string
	Requests []Request
}

// Run is a stretch of time over which the raw value does not change.
// Runs are half-open [Start, End); the last run of a request ends at To.
type Run struct {
	Value  value.SampledValue
	Result value.TranslationResult
	Start  uint64
	End    uint64
}

// VariableResult holds the translated runs of one request. Err is set when
// the variable could not be translated at all; failures of single values
// are rendered in place as warn results instead.
type VariableResult struct {
	Err        error
	Variable   string
	Translator string
	Runs       []Run
}

// Results is the outcome of a batch. Every result was computed against the
// trace of Generation. Stale reports that the trace was replaced while the
// batch ran.
type Results struct {
	Variables  []VariableResult
	Generation uint64
	Stale      bool
}

// Job is a submitted batch.
type Job struct {
	results  *Results
	err      error
	cancel   context.CancelFunc
	done     chan struct{}
	Viewport string
	ID       uuid.UUID
}

// Done is closed when the job finished, successfully or not.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel abandons the job. Results already cached are kept.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the job finishes or ctx is done. A cancelled job
// returns the partial results together with a Cancelled error.
func (j *Job) Wait(ctx context.Context) (*Results, error) {
	select {
	case <-j.done:
		return j.results, j.err
	case <-ctx.Done():
		return nil, errors.Cancelled(errors.PhaseSchedule, ctx.Err())
	}
}

func (j *Job) finish(r *Results, err error) {
	j.results, j.err = r, err
	close(j.done)
}
