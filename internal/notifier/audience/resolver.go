// Package audience walks the entity relationship graph and produces the
// ordered, structurally deduplicated list of context bundles a schedule's
// filters select.
package audience

import (
	"context"

	"gaia-notifier/internal/models"
)

// Provider is the read-only relationship graph the resolver walks.
type Provider interface {
	EmployeesOfJob(ctx context.Context, jobID string) ([]*models.Employee, error)
	ClientsOfJob(ctx context.Context, jobID string) ([]*models.Client, error)
	SubjectGroupsOfJob(ctx context.Context, jobID string) ([]*models.SubjectGroup, error)
	JobsOfSubjectGroup(ctx context.Context, subjectGroupID string) ([]*models.Job, error)
	ClientOfSubjectGroup(ctx context.Context, subjectGroupID string) (*models.Client, error)
	SubjectsOfSubjectGroup(ctx context.Context, subjectGroupID string) ([]*models.Subject, error)
	ParentsOfSubject(ctx context.Context, subjectID string) ([]*models.GaiaUser, error)
	ContactsOfClient(ctx context.Context, clientID string) ([]*models.GaiaUser, error)
	// BookedSession returns the subject's session on the job, nil when the
	// subject has no booking there.
	BookedSession(ctx context.Context, jobID, subjectID string) (*models.Session, error)
}

// Resolver builds audiences from a Provider.
type Resolver struct {
	graph Provider
}

func New(graph Provider) *Resolver {
	return &Resolver{graph: graph}
}

// collector accumulates bundles in insertion order, dropping structural
// duplicates by fingerprint.
type collector struct {
	seen map[string]struct{}
	out  []models.ContextBundle
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

func (c *collector) add(b models.ContextBundle) {
	key := b.Fingerprint()
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.out = append(c.out, b)
}

// Resolve dispatches on the schedule's trigger type.
func (r *Resolver) Resolve(ctx context.Context, s *models.Schedule, root models.Root) ([]models.ContextBundle, error) {
	if err := root.Validate(s.TriggerType); err != nil {
		return nil, err
	}

	if s.TriggerType == models.TriggerJob {
		return r.ResolveJob(ctx, s, root.Job)
	}
	return r.ResolveSubjectGroup(ctx, s, root.SubjectGroup)
}

// ResolveJob builds the audience for a job-rooted schedule. Every bundle
// carries the root job.
func (r *Resolver) ResolveJob(ctx context.Context, s *models.Schedule, job *models.Job) ([]models.ContextBundle, error) {
	c := newCollector()

	if err := r.collectJobAudience(ctx, c, s, job, nil); err != nil {
		return nil, err
	}

	if s.Filters.AnySubjects() {
		groups, err := r.graph.SubjectGroupsOfJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		for _, sg := range groups {
			if err := r.collectSubjects(ctx, c, s, job, sg); err != nil {
				return nil, err
			}
		}
	}

	return c.out, nil
}

// ResolveSubjectGroup builds the audience for a subject-group-rooted
// schedule: the audiences of every linked job (with the group attached), the
// group's own client, and unbooked-only bundles for subjects when the group
// has no jobs.
func (r *Resolver) ResolveSubjectGroup(ctx context.Context, s *models.Schedule, sg *models.SubjectGroup) ([]models.ContextBundle, error) {
	c := newCollector()

	jobs, err := r.graph.JobsOfSubjectGroup(ctx, sg.ID)
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if err := r.collectJobAudience(ctx, c, s, job, sg); err != nil {
			return nil, err
		}
	}

	if s.Filters.AnyClients() {
		client, err := r.graph.ClientOfSubjectGroup(ctx, sg.ID)
		if err != nil {
			return nil, err
		}
		if client != nil {
			if err := r.collectClient(ctx, c, s, client, nil, sg); err != nil {
				return nil, err
			}
		}
	}

	if s.Filters.AnySubjects() {
		subjects, err := r.graph.SubjectsOfSubjectGroup(ctx, sg.ID)
		if err != nil {
			return nil, err
		}
		for _, subject := range subjects {
			if len(jobs) == 0 {
				// Without a job there can be no booking; only the
				// not-booked filters can match.
				if err := r.collectUnbooked(ctx, c, s, nil, sg, subject); err != nil {
					return nil, err
				}
				continue
			}
			for _, job := range jobs {
				if err := r.collectSubjectOnJob(ctx, c, s, job, sg, subject); err != nil {
					return nil, err
				}
			}
		}
	}

	return c.out, nil
}

// collectJobAudience emits employee and client bundles for one job. For
// job-rooted schedules sg is nil; subject-group roots attach the group to
// every bundle. Subject filters for job roots are handled by the caller
// because they iterate the job's own subject groups.
func (r *Resolver) collectJobAudience(ctx context.Context, c *collector, s *models.Schedule, job *models.Job, sg *models.SubjectGroup) error {
	if s.Filters.Employees {
		employees, err := r.graph.EmployeesOfJob(ctx, job.ID)
		if err != nil {
			return err
		}
		for _, employee := range employees {
			c.add(models.ContextBundle{
				Recipient:    employee.GaiaUser,
				Job:          job,
				SubjectGroup: sg,
				Employee:     employee,
			})
		}
	}

	if s.Filters.AnyClients() {
		clients, err := r.graph.ClientsOfJob(ctx, job.ID)
		if err != nil {
			return err
		}
		for _, client := range clients {
			if err := r.collectClient(ctx, c, s, client, job, sg); err != nil {
				return err
			}
		}
	}

	return nil
}

// collectClient emits bundles for one client under the category rules:
// Person clients are notified directly, institutional clients through their
// contacts (with the client attached).
func (r *Resolver) collectClient(ctx context.Context, c *collector, s *models.Schedule, client *models.Client, job *models.Job, sg *models.SubjectGroup) error {
	if s.Filters.ClientsPersons && client.Category == models.CategoryPerson {
		if client.GaiaUser != nil {
			bundle := models.ContextBundle{
				Recipient:    client.GaiaUser,
				Job:          job,
				SubjectGroup: sg,
			}
			if sg != nil {
				bundle.Client = client
			}
			c.add(bundle)
		}
	}

	institutional := (s.Filters.ClientsSchools && client.Category == models.CategorySchool) ||
		(s.Filters.ClientsCommercialOthers &&
			(client.Category == models.CategoryCommercial || client.Category == models.CategoryOther))
	if institutional {
		contacts, err := r.graph.ContactsOfClient(ctx, client.ID)
		if err != nil {
			return err
		}
		for _, contact := range contacts {
			c.add(models.ContextBundle{
				Recipient:    contact,
				Job:          job,
				SubjectGroup: sg,
				Client:       client,
			})
		}
	}

	return nil
}

// collectSubjects emits subject/parent bundles for every subject of one
// subject group against one job.
func (r *Resolver) collectSubjects(ctx context.Context, c *collector, s *models.Schedule, job *models.Job, sg *models.SubjectGroup) error {
	subjects, err := r.graph.SubjectsOfSubjectGroup(ctx, sg.ID)
	if err != nil {
		return err
	}
	for _, subject := range subjects {
		if err := r.collectSubjectOnJob(ctx, c, s, job, sg, subject); err != nil {
			return err
		}
	}
	return nil
}

// collectSubjectOnJob routes one subject to the booked or not-booked filters
// depending on whether it holds a session on the job.
func (r *Resolver) collectSubjectOnJob(ctx context.Context, c *collector, s *models.Schedule, job *models.Job, sg *models.SubjectGroup, subject *models.Subject) error {
	session, err := r.graph.BookedSession(ctx, job.ID, subject.ID)
	if err != nil {
		return err
	}

	if session != nil {
		if !s.Filters.SubjectsBooked && !s.Filters.SubjectsParentsBooked {
			return nil
		}
		if s.Filters.SubjectsBooked && subject.GaiaUser != nil {
			c.add(models.ContextBundle{
				Recipient:    subject.GaiaUser,
				Job:          job,
				SubjectGroup: sg,
				Session:      session,
				Subject:      subject,
			})
		}
		if s.Filters.SubjectsParentsBooked {
			parents, err := r.graph.ParentsOfSubject(ctx, subject.ID)
			if err != nil {
				return err
			}
			for _, parent := range parents {
				c.add(models.ContextBundle{
					Recipient:    parent,
					Job:          job,
					SubjectGroup: sg,
					Session:      session,
					Subject:      subject,
				})
			}
		}
		return nil
	}

	return r.collectUnbooked(ctx, c, s, job, sg, subject)
}

// collectUnbooked emits bundles for a subject without a session. Job is nil
// when the subject group has no jobs at all.
func (r *Resolver) collectUnbooked(ctx context.Context, c *collector, s *models.Schedule, job *models.Job, sg *models.SubjectGroup, subject *models.Subject) error {
	if !s.Filters.SubjectsNotBooked && !s.Filters.SubjectsParentsNotBooked {
		return nil
	}

	if s.Filters.SubjectsNotBooked && subject.GaiaUser != nil {
		c.add(models.ContextBundle{
			Recipient:    subject.GaiaUser,
			Job:          job,
			SubjectGroup: sg,
			Subject:      subject,
		})
	}
	if s.Filters.SubjectsParentsNotBooked {
		parents, err := r.graph.ParentsOfSubject(ctx, subject.ID)
		if err != nil {
			return err
		}
		for _, parent := range parents {
			c.add(models.ContextBundle{
				Recipient:    parent,
				Job:          job,
				SubjectGroup: sg,
				Subject:      subject,
			})
		}
	}

	return nil
}
