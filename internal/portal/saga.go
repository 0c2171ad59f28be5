package portal

import (
	"context"
	"fmt"
	"log"
)

// StepStatus is the outcome of one saga step.
type StepStatus string

const (
	StepDone               StepStatus = "done"
	StepFailed             StepStatus = "failed"
	StepSkipped            StepStatus = "skipped"
	StepCompensated        StepStatus = "compensated"
	StepCompensationFailed StepStatus = "compensation_failed"
)

// Step is one backend write of a multi-step operation. Compensate undoes a
// completed Run and may be nil. A failing Optional step is logged and the
// saga continues.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	Optional   bool
}

// StepOutcome reports what happened to one step.
type StepOutcome struct {
	Step   string     `json:"step"`
	Status StepStatus `json:"status"`
	Err    error      `json:"-"`
}

// SagaError is returned when a required step failed. Report holds the
// outcome of every step, including compensations.
type SagaError struct {
	Op     string
	Step   string
	Err    error
	Report []StepOutcome
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("%s: step %s: %v", e.Op, e.Step, e.Err)
}

func (e *SagaError) Unwrap() error { return e.Err }

// Completed reports whether step ran and was not undone.
func (e *SagaError) Completed(step string) bool {
	for _, o := range e.Report {
		if o.Step == step {
			return o.Status == StepDone
		}
	}
	return false
}

// saga runs steps in order. On the first failing required step it
// compensates the completed steps in reverse order, each exactly once.
type saga struct {
	op            string
	steps         []Step
	onCompensated func(step string, err error)
}

func (s saga) run(ctx context.Context) ([]StepOutcome, error) {
	report := make([]StepOutcome, len(s.steps))
	for i, st := range s.steps {
		report[i] = StepOutcome{Step: st.Name, Status: StepSkipped}
	}

	for i, st := range s.steps {
		err := st.Run(ctx)
		if err == nil {
			report[i].Status = StepDone
			continue
		}
		report[i].Status = StepFailed
		report[i].Err = err
		if st.Optional {
			log.Printf("%s: optional step %s failed: %v", s.op, st.Name, err)
			continue
		}

		for j := i - 1; j >= 0; j-- {
			prev := s.steps[j]
			if report[j].Status != StepDone || prev.Compensate == nil {
				continue
			}
			cerr := prev.Compensate(ctx)
			if s.onCompensated != nil {
				s.onCompensated(prev.Name, cerr)
			}
			if cerr != nil {
				log.Printf("%s: compensating %s: %v", s.op, prev.Name, cerr)
				report[j].Status = StepCompensationFailed
				report[j].Err = cerr
				continue
			}
			report[j].Status = StepCompensated
		}
		return report, &SagaError{Op: s.op, Step: st.Name, Err: err, Report: report}
	}
	return report, nil
}
