// internal/models/bundle.go
package models

import "strings"

// ContextBundle is one audience member: the recipient plus the related
// entities relevant to rendering their message. All slots except Recipient
// are optional.
type ContextBundle struct {
	Recipient    *GaiaUser
	Job          *Job
	SubjectGroup *SubjectGroup
	Session      *Session
	Employee     *Employee
	Client       *Client
	Subject      *Subject
}

// Fingerprint is the structural identity of the bundle: the identities of
// every slot together. Two bundles with the same fingerprint are duplicates
// even when the recipient differs on other bundles.
func (b ContextBundle) Fingerprint() string {
	parts := make([]string, 0, 7)
	parts = append(parts, "u:"+b.Recipient.ID)
	if b.Job != nil {
		parts = append(parts, "j:"+b.Job.ID)
	}
	if b.SubjectGroup != nil {
		parts = append(parts, "g:"+b.SubjectGroup.ID)
	}
	if b.Session != nil {
		parts = append(parts, "se:"+b.Session.ID)
	}
	if b.Employee != nil {
		parts = append(parts, "e:"+b.Employee.ID)
	}
	if b.Client != nil {
		parts = append(parts, "c:"+b.Client.ID)
	}
	if b.Subject != nil {
		parts = append(parts, "s:"+b.Subject.ID)
	}
	return strings.Join(parts, "|")
}

// Entity returns the slot for a kind, nil when absent. The recipient slot is
// addressed as KindGaiaUser.
func (b ContextBundle) Entity(kind EntityKind) interface{} {
	switch kind {
	case KindGaiaUser:
		if b.Recipient != nil {
			return b.Recipient
		}
	case KindJob:
		if b.Job != nil {
			return b.Job
		}
	case KindSubjectGroup:
		if b.SubjectGroup != nil {
			return b.SubjectGroup
		}
	case KindSession:
		if b.Session != nil {
			return b.Session
		}
	case KindEmployee:
		if b.Employee != nil {
			return b.Employee
		}
	case KindClient:
		if b.Client != nil {
			return b.Client
		}
	case KindSubject:
		if b.Subject != nil {
			return b.Subject
		}
	}
	return nil
}
