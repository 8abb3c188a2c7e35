package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/models"
)

// Graph implements audience.Provider by walking the relationship tables.
type Graph struct {
	db *sql.DB
}

func NewGraph(db *sql.DB) *Graph {
	return &Graph{db: db}
}

const gaiaUserColumns = `u.id, u.first_name, u.last_name, u.email, COALESCE(u.phone_number, ''), COALESCE(u.slack_handle, '')`

func scanGaiaUser(scanner interface{ Scan(...interface{}) error }) (*models.GaiaUser, error) {
	var u models.GaiaUser
	if err := scanner.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.SlackHandle); err != nil {
		return nil, err
	}
	return &u, nil
}

// ==========================
// Job relationships
// ==========================

func (g *Graph) EmployeesOfJob(ctx context.Context, jobID string) ([]*models.Employee, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT e.id, COALESCE(e.title, ''), `+gaiaUserColumns+`
		FROM employees e
		JOIN job_employees je ON je.employee_id = e.id
		JOIN gaia_users u ON u.id = e.gaia_user_id
		WHERE je.job_id = $1
		ORDER BY e.id`, jobID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("employees_of_job", err)
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		var e models.Employee
		var u models.GaiaUser
		if err := rows.Scan(&e.ID, &e.Title, &u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.SlackHandle); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("employees_of_job", err)
		}
		e.GaiaUser = &u
		employees = append(employees, &e)
	}
	return employees, rows.Err()
}

func (g *Graph) ClientsOfJob(ctx context.Context, jobID string) ([]*models.Client, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT c.id, c.category, c.name, u.id, u.first_name, u.last_name, u.email,
		       COALESCE(u.phone_number, ''), COALESCE(u.slack_handle, '')
		FROM clients c
		JOIN job_clients jc ON jc.client_id = c.id
		LEFT JOIN gaia_users u ON u.id = c.gaia_user_id
		WHERE jc.job_id = $1
		ORDER BY c.id`, jobID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("clients_of_job", err)
	}
	defer rows.Close()

	return scanClients(rows, "clients_of_job")
}

func (g *Graph) SubjectGroupsOfJob(ctx context.Context, jobID string) ([]*models.SubjectGroup, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT sg.id, sg.name, sg.start_time, sg.end_time, sg.photos_available, sg.client_id
		FROM subject_groups sg
		JOIN subject_group_jobs sgj ON sgj.subject_group_id = sg.id
		WHERE sgj.job_id = $1
		ORDER BY sg.id`, jobID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("subject_groups_of_job", err)
	}
	defer rows.Close()

	var groups []*models.SubjectGroup
	for rows.Next() {
		var sg models.SubjectGroup
		if err := rows.Scan(&sg.ID, &sg.Name, &sg.StartTime, &sg.EndTime, &sg.PhotosAvailable, &sg.ClientID); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("subject_groups_of_job", err)
		}
		groups = append(groups, &sg)
	}
	return groups, rows.Err()
}

// ==========================
// Subject group relationships
// ==========================

func (g *Graph) JobsOfSubjectGroup(ctx context.Context, subjectGroupID string) ([]*models.Job, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT j.id, j.name, j.start_time, j.end_time, COALESCE(j.location, '')
		FROM jobs j
		JOIN subject_group_jobs sgj ON sgj.job_id = j.id
		WHERE sgj.subject_group_id = $1
		ORDER BY j.start_time`, subjectGroupID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("jobs_of_subject_group", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.Name, &j.StartTime, &j.EndTime, &j.Location); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("jobs_of_subject_group", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (g *Graph) ClientOfSubjectGroup(ctx context.Context, subjectGroupID string) (*models.Client, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT c.id, c.category, c.name, u.id, u.first_name, u.last_name, u.email,
		       COALESCE(u.phone_number, ''), COALESCE(u.slack_handle, '')
		FROM clients c
		JOIN subject_groups sg ON sg.client_id = c.id
		LEFT JOIN gaia_users u ON u.id = c.gaia_user_id
		WHERE sg.id = $1`, subjectGroupID)

	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("client_of_subject_group", err)
	}
	return client, nil
}

func (g *Graph) SubjectsOfSubjectGroup(ctx context.Context, subjectGroupID string) ([]*models.Subject, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT s.id, s.subject_group_id, `+gaiaUserColumns+`
		FROM subjects s
		JOIN gaia_users u ON u.id = s.gaia_user_id
		WHERE s.subject_group_id = $1
		ORDER BY s.id`, subjectGroupID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("subjects_of_subject_group", err)
	}
	defer rows.Close()

	var subjects []*models.Subject
	for rows.Next() {
		var s models.Subject
		var u models.GaiaUser
		if err := rows.Scan(&s.ID, &s.SubjectGroupID, &u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.SlackHandle); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("subjects_of_subject_group", err)
		}
		s.GaiaUser = &u
		subjects = append(subjects, &s)
	}
	return subjects, rows.Err()
}

// ==========================
// People lookups
// ==========================

func (g *Graph) ParentsOfSubject(ctx context.Context, subjectID string) ([]*models.GaiaUser, error) {
	return g.queryGaiaUsers(ctx, "parents_of_subject", `
		SELECT `+gaiaUserColumns+`
		FROM gaia_users u
		JOIN subject_parents sp ON sp.gaia_user_id = u.id
		WHERE sp.subject_id = $1
		ORDER BY u.id`, subjectID)
}

func (g *Graph) ContactsOfClient(ctx context.Context, clientID string) ([]*models.GaiaUser, error) {
	return g.queryGaiaUsers(ctx, "contacts_of_client", `
		SELECT `+gaiaUserColumns+`
		FROM gaia_users u
		JOIN client_contacts cc ON cc.gaia_user_id = u.id
		WHERE cc.client_id = $1
		ORDER BY u.id`, clientID)
}

// BookedSession returns the subject's session on the job, nil when the
// subject has no booking there.
func (g *Graph) BookedSession(ctx context.Context, jobID, subjectID string) (*models.Session, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT id, job_id, subject_id, start_time
		FROM sessions
		WHERE job_id = $1 AND subject_id = $2`, jobID, subjectID)

	var sess models.Session
	err := row.Scan(&sess.ID, &sess.JobID, &sess.SubjectID, &sess.StartTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("booked_session", err)
	}
	return &sess, nil
}

// ==========================
// Root lookups for the sweep
// ==========================

// JobByID loads one job by id for evaluation as a root entity.
func (g *Graph) JobByID(ctx context.Context, jobID string) (*models.Job, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT id, name, start_time, end_time, COALESCE(location, '')
		FROM jobs WHERE id = $1`, jobID)

	var j models.Job
	err := row.Scan(&j.ID, &j.Name, &j.StartTime, &j.EndTime, &j.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("job_by_id", err)
	}
	return &j, nil
}

// UpcomingJobs returns the jobs a sweep should evaluate job-rooted schedules
// against: anything not yet ended plus a trailing grace window for
// after-the-fact triggers.
func (g *Graph) UpcomingJobs(ctx context.Context, horizon time.Duration) ([]*models.Job, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, name, start_time, end_time, COALESCE(location, '')
		FROM jobs
		WHERE end_time > NOW() - $1::interval
		ORDER BY start_time`, horizon.String())
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("upcoming_jobs", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.Name, &j.StartTime, &j.EndTime, &j.Location); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("upcoming_jobs", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// ActiveSubjectGroups returns the subject groups a sweep should evaluate
// subject-group-rooted schedules against.
func (g *Graph) ActiveSubjectGroups(ctx context.Context, horizon time.Duration) ([]*models.SubjectGroup, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, name, start_time, end_time, photos_available, client_id
		FROM subject_groups
		WHERE end_time > NOW() - $1::interval
		ORDER BY start_time`, horizon.String())
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("active_subject_groups", err)
	}
	defer rows.Close()

	var groups []*models.SubjectGroup
	for rows.Next() {
		var sg models.SubjectGroup
		if err := rows.Scan(&sg.ID, &sg.Name, &sg.StartTime, &sg.EndTime, &sg.PhotosAvailable, &sg.ClientID); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("active_subject_groups", err)
		}
		groups = append(groups, &sg)
	}
	return groups, rows.Err()
}

// ==========================
// Helpers
// ==========================

func (g *Graph) queryGaiaUsers(ctx context.Context, name, query string, args ...interface{}) ([]*models.GaiaUser, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError(name, err)
	}
	defer rows.Close()

	var users []*models.GaiaUser
	for rows.Next() {
		u, err := scanGaiaUser(rows)
		if err != nil {
			return nil, stderrors.NewQueryExecutionFailedError(name, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanClients(rows *sql.Rows, queryName string) ([]*models.Client, error) {
	var clients []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, stderrors.NewQueryExecutionFailedError(queryName, err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func scanClient(scanner interface{ Scan(...interface{}) error }) (*models.Client, error) {
	var c models.Client
	var uID, uFirst, uLast, uEmail, uPhone, uSlack sql.NullString
	if err := scanner.Scan(&c.ID, &c.Category, &c.Name, &uID, &uFirst, &uLast, &uEmail, &uPhone, &uSlack); err != nil {
		return nil, err
	}
	if uID.Valid {
		c.GaiaUser = &models.GaiaUser{
			ID:          uID.String,
			FirstName:   uFirst.String,
			LastName:    uLast.String,
			Email:       uEmail.String,
			PhoneNumber: uPhone.String,
			SlackHandle: uSlack.String,
		}
	}
	return &c, nil
}
