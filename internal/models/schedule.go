// internal/models/schedule.go
package models

import (
	"fmt"
	"time"
)

// TriggerType selects which root-entity kind a schedule evaluates against.
type TriggerType string

const (
	TriggerJob          TriggerType = "job"
	TriggerSubjectGroup TriggerType = "subject_group"
)

// StartTrigger opens the notification window.
type StartTrigger string

const (
	StartBeforeJobStart StartTrigger = "before_job_start"
	StartAfterJobEnd    StartTrigger = "after_job_end"
	StartAfterJobSaved  StartTrigger = "after_job_saved"
	// StartAfterJobLocationChanged is treated as always started; there is no
	// location change log to compare against yet.
	StartAfterJobLocationChanged StartTrigger = "after_job_location_changed"
	StartAfterPhotosAvailable    StartTrigger = "after_photos_available"
	StartAfterSubjectGroupStart  StartTrigger = "after_subject_group_start"
	StartAfterSubjectGroupEnd    StartTrigger = "after_subject_group_end"
)

// EndTrigger closes the notification window when no explicit end_at is set.
type EndTrigger string

const (
	EndUntilJobStart        EndTrigger = "until_job_start"
	EndUntilSubjectGroupEnd EndTrigger = "until_subject_group_end"
)

// CadenceUnit is the unit of the recurrence spacing between resends.
type CadenceUnit string

const (
	CadenceSeconds CadenceUnit = "seconds"
	CadenceMinutes CadenceUnit = "minutes"
	CadenceHours   CadenceUnit = "hours"
	CadenceDays    CadenceUnit = "days"
	CadenceWeeks   CadenceUnit = "weeks"
)

// AudienceFilters are the schedule's audience selection flags.
type AudienceFilters struct {
	Employees                bool `json:"employees"`
	ClientsPersons           bool `json:"clientsPersons"`
	ClientsSchools           bool `json:"clientsSchools"`
	ClientsCommercialOthers  bool `json:"clientsCommercialOthers"`
	SubjectsBooked           bool `json:"subjectsBooked"`
	SubjectsParentsBooked    bool `json:"subjectsParentsBooked"`
	SubjectsNotBooked        bool `json:"subjectsNotBooked"`
	SubjectsParentsNotBooked bool `json:"subjectsParentsNotBooked"`
}

// AnyClients reports whether any client-category filter is enabled.
func (f AudienceFilters) AnyClients() bool {
	return f.ClientsPersons || f.ClientsSchools || f.ClientsCommercialOthers
}

// AnySubjects reports whether any subject filter is enabled.
func (f AudienceFilters) AnySubjects() bool {
	return f.SubjectsBooked || f.SubjectsParentsBooked || f.SubjectsNotBooked || f.SubjectsParentsNotBooked
}

// Empty reports whether no filter is enabled at all.
func (f AudienceFilters) Empty() bool {
	return !f.Employees && !f.AnyClients() && !f.AnySubjects()
}

// Schedule is the operator-authored configuration describing when and to whom
// a notification is sent. The engine only ever mutates Active and LastSentAt.
type Schedule struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Active       bool            `json:"active"`
	Recurring    bool            `json:"recurring"`
	CadenceUnit  CadenceUnit     `json:"cadenceUnit"`
	CadenceCount int             `json:"cadenceCount"`
	TriggerType  TriggerType     `json:"triggerType"`
	StartTrigger StartTrigger    `json:"startTrigger"`
	EndTrigger   EndTrigger      `json:"endTrigger,omitempty"`
	EndAt        *time.Time      `json:"endAt,omitempty"`
	LastSentAt   *time.Time      `json:"lastSentAt,omitempty"`
	Filters      AudienceFilters `json:"filters"`

	Template *ContextualTemplate `json:"template,omitempty"`

	EmailConnector *EmailConnector `json:"emailConnector,omitempty"`
	SMSConnector   *SMSConnector   `json:"smsConnector,omitempty"`
	ChatConnector  *ChatConnector  `json:"chatConnector,omitempty"`
}

// CadenceDuration converts the (unit, count) cadence into a duration,
// validating both. Count must be within 1..1000.
func (s *Schedule) CadenceDuration() (time.Duration, error) {
	if s.CadenceCount < 1 || s.CadenceCount > 1000 {
		return 0, fmt.Errorf("cadence count %d out of range [1,1000]", s.CadenceCount)
	}

	var unit time.Duration
	switch s.CadenceUnit {
	case CadenceSeconds:
		unit = time.Second
	case CadenceMinutes:
		unit = time.Minute
	case CadenceHours:
		unit = time.Hour
	case CadenceDays:
		unit = 24 * time.Hour
	case CadenceWeeks:
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown cadence unit %q", s.CadenceUnit)
	}

	return time.Duration(s.CadenceCount) * unit, nil
}

// HasConnector reports whether any delivery channel is configured.
// A schedule with no connector is inert.
func (s *Schedule) HasConnector() bool {
	return s.EmailConnector != nil || s.SMSConnector != nil || s.ChatConnector != nil
}

// Root carries the entity that triggered evaluation. Exactly one field is set,
// matching the schedule's trigger type.
type Root struct {
	Job          *Job
	SubjectGroup *SubjectGroup
}

// Validate checks that the root matches the trigger type.
func (r Root) Validate(triggerType TriggerType) error {
	switch triggerType {
	case TriggerJob:
		if r.Job == nil {
			return fmt.Errorf("trigger type %q requires a job root", triggerType)
		}
	case TriggerSubjectGroup:
		if r.SubjectGroup == nil {
			return fmt.Errorf("trigger type %q requires a subject group root", triggerType)
		}
	default:
		return fmt.Errorf("unknown trigger type %q", triggerType)
	}
	return nil
}
