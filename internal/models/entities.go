// internal/models/entities.go
package models

import "time"

// EntityKind names a slot in a context bundle. Context references use these
// as their prefix, e.g. "@Job.start_time".
type EntityKind string

const (
	KindGaiaUser     EntityKind = "GaiaUser"
	KindSubjectGroup EntityKind = "SubjectGroup"
	KindJob          EntityKind = "Job"
	KindSession      EntityKind = "Session"
	KindEmployee     EntityKind = "Employee"
	KindClient       EntityKind = "Client"
	KindSubject      EntityKind = "Subject"
)

// GaiaUser is the notifiable person behind every audience slot.
type GaiaUser struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	SlackHandle string `json:"slackHandle,omitempty"`
}

// Job is a shoot/engagement with a start and end time at a location.
type Job struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Location  string    `json:"location,omitempty"`
}

// SubjectGroup is a cohort of subjects belonging to one client.
type SubjectGroup struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	PhotosAvailable bool      `json:"photosAvailable"`
	ClientID        string    `json:"clientId"`
}

// Session is a booked sitting of a subject on a job.
type Session struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	SubjectID string    `json:"subjectId"`
	StartTime time.Time `json:"startTime"`
}

// Employee is a staff member assignable to jobs.
type Employee struct {
	ID       string    `json:"id"`
	GaiaUser *GaiaUser `json:"gaiaUser"`
	Title    string    `json:"title,omitempty"`
}

// ClientCategory drives which audience filter a client matches.
type ClientCategory string

const (
	CategoryPerson     ClientCategory = "Person"
	CategorySchool     ClientCategory = "School"
	CategoryCommercial ClientCategory = "Commercial"
	CategoryOther      ClientCategory = "Other"
)

// Client is a customer account. Person clients are notified directly through
// their own GaiaUser; institutional clients are notified through their contacts.
type Client struct {
	ID       string         `json:"id"`
	Category ClientCategory `json:"category"`
	Name     string         `json:"name"`
	GaiaUser *GaiaUser      `json:"gaiaUser,omitempty"`
}

// Subject is a person being photographed, member of a subject group.
type Subject struct {
	ID             string    `json:"id"`
	GaiaUser       *GaiaUser `json:"gaiaUser"`
	SubjectGroupID string    `json:"subjectGroupId"`
}
