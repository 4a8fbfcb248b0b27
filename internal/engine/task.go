package engine

import (
	"fmt"

	"github.com/cr0sh/grasshopper/errs"
)

// task is one strategy's cooperative coroutine. The executor drives it
// lock-step: resumeWith unblocks the strategy goroutine and waits until it
// either parks again or completes, so strategy code never runs
// concurrently with the executor or with other strategies.
type task struct {
	name   string
	resume chan any
	parked chan struct{}
	done   chan struct{}
	err    error
	want   Want
}

func newTask(name string, body func() error) *task {
	t := &task{
		name:   name,
		resume: make(chan any),
		parked: make(chan struct{}),
		done:   make(chan struct{}),
		err:    nil,
		want:   nil,
	}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = errs.New("task/run", errs.CodeRuntime,
					errs.WithStrategy(name),
					errs.WithMessage(fmt.Sprintf("strategy panicked: %v", r)))
			}
		}()
		<-t.resume
		t.err = body()
	}()
	return t
}

// yield parks the calling strategy goroutine until the executor resumes it
// with a matching event value.
func (t *task) yield(want Want) any {
	t.want = want
	t.parked <- struct{}{}
	return <-t.resume
}

// resumeWith hands v to the parked strategy goroutine and runs it until the
// next suspension point or completion. finished reports completion; the
// strategy's error is then available in t.err.
func (t *task) resumeWith(v any) (finished bool) {
	select {
	case t.resume <- v:
	case <-t.done:
		return true
	}
	select {
	case <-t.parked:
		return false
	case <-t.done:
		return true
	}
}

func (t *task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *task) clearWant() {
	t.want = nil
}
