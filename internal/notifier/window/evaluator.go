// Package window decides whether a schedule is currently eligible to fire
// and whether it should be retired. The window is recomputed on every call;
// the schedule's active flag is the only persisted state.
package window

import (
	"time"

	"gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/models"
)

// Clock abstracts "now" for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Decision is the outcome of one evaluation.
type Decision struct {
	Eligible         bool
	ShouldDeactivate bool
}

// Evaluator computes window decisions for both root kinds. The two kinds are
// kept as separate policies: job roots re-check recurrence spacing only once
// the end trigger has passed, subject-group roots check spacing whenever the
// window is otherwise open.
type Evaluator struct {
	clock Clock
}

func New(clock Clock) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Evaluator{clock: clock}
}

// Evaluate dispatches on the schedule's trigger type.
func (e *Evaluator) Evaluate(s *models.Schedule, root models.Root) (Decision, error) {
	if err := root.Validate(s.TriggerType); err != nil {
		return Decision{}, errors.NewTriggerMismatchError(string(s.TriggerType), err.Error())
	}

	switch s.TriggerType {
	case models.TriggerJob:
		return e.EvaluateJob(s, root.Job)
	default:
		return e.EvaluateSubjectGroup(s, root.SubjectGroup)
	}
}

// EvaluateJob applies the job-root policy.
func (e *Evaluator) EvaluateJob(s *models.Schedule, job *models.Job) (Decision, error) {
	if !s.Active {
		return Decision{}, nil
	}

	now := e.clock.Now()

	started := false
	switch s.StartTrigger {
	case models.StartBeforeJobStart:
		started = now.Before(job.StartTime)
	case models.StartAfterJobEnd:
		started = now.After(job.EndTime)
	case models.StartAfterJobSaved:
		started = true
	case models.StartAfterJobLocationChanged:
		started = true
	default:
		return Decision{}, errors.NewConfigurationInvalidError(
			"start trigger " + string(s.StartTrigger) + " is not valid for a job root")
	}

	if !started {
		return Decision{}, nil
	}

	ended := false
	if s.EndAt != nil && now.After(*s.EndAt) {
		ended = true
	} else if s.EndTrigger == models.EndUntilJobStart && now.After(job.StartTime) {
		ended = true
	}

	if ended {
		if !s.Recurring {
			return Decision{ShouldDeactivate: true}, nil
		}
		// Past the end trigger a recurring schedule may still resend,
		// gated only by cadence spacing.
		ok, err := e.spacingOpen(s, now)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Eligible: ok}, nil
	}

	// Window open. Spacing is not consulted here for job roots.
	d := Decision{Eligible: true}
	if !s.Recurring && s.LastSentAt != nil {
		// One-shot already sent once: retire it.
		d.ShouldDeactivate = true
	}
	return d, nil
}

// EvaluateSubjectGroup applies the subject-group-root policy.
func (e *Evaluator) EvaluateSubjectGroup(s *models.Schedule, sg *models.SubjectGroup) (Decision, error) {
	if !s.Active {
		return Decision{}, nil
	}

	now := e.clock.Now()

	started := false
	switch s.StartTrigger {
	case models.StartAfterPhotosAvailable:
		started = sg.PhotosAvailable
	case models.StartAfterSubjectGroupStart:
		started = now.After(sg.StartTime)
	case models.StartAfterSubjectGroupEnd:
		started = now.After(sg.EndTime)
	default:
		return Decision{}, errors.NewConfigurationInvalidError(
			"start trigger " + string(s.StartTrigger) + " is not valid for a subject group root")
	}

	if !started {
		return Decision{}, nil
	}

	ended := false
	if s.EndAt != nil && now.After(*s.EndAt) {
		ended = true
	} else if s.EndTrigger == models.EndUntilSubjectGroupEnd && now.After(sg.EndTime) {
		ended = true
	}

	if ended {
		if !s.Recurring {
			return Decision{ShouldDeactivate: true}, nil
		}
		return Decision{}, nil
	}

	if s.Recurring {
		ok, err := e.spacingOpen(s, now)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Eligible: ok}, nil
	}

	d := Decision{Eligible: true}
	if s.LastSentAt != nil {
		d.ShouldDeactivate = true
	}
	return d, nil
}

// spacingOpen reports whether enough time has passed since the last send.
func (e *Evaluator) spacingOpen(s *models.Schedule, now time.Time) (bool, error) {
	cadence, err := s.CadenceDuration()
	if err != nil {
		return false, errors.NewCadenceInvalidError(string(s.CadenceUnit), s.CadenceCount)
	}

	if s.LastSentAt != nil && now.Sub(*s.LastSentAt) < cadence {
		return false, nil
	}
	return true, nil
}
