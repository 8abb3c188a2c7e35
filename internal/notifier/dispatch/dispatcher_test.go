package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/audience"
	"gaia-notifier/internal/notifier/channels"
	"gaia-notifier/internal/notifier/window"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// ==========================
// Mocks
// ==========================

type mockStore struct {
	mu            sync.Mutex
	deactivated   []string
	lastSent      map[string]time.Time
	notifications []*models.Notification

	deactivateErr error
}

func newMockStore() *mockStore {
	return &mockStore{lastSent: make(map[string]time.Time)}
}

func (m *mockStore) DeactivateSchedule(_ context.Context, scheduleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deactivateErr != nil {
		return m.deactivateErr
	}
	m.deactivated = append(m.deactivated, scheduleID)
	return nil
}

func (m *mockStore) SetLastSentAt(_ context.Context, scheduleID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSent[scheduleID] = at
	return nil
}

func (m *mockStore) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

type mockLocker struct {
	held     bool
	acquired int
	released int
}

func (m *mockLocker) Acquire(_ context.Context, _ string) (func(), bool, error) {
	if m.held {
		return nil, false, nil
	}
	m.acquired++
	return func() { m.released++ }, true, nil
}

type fakeConnector struct {
	channel models.Channel
	name    string
	send    func(ctx context.Context, recipient *models.GaiaUser, msg channels.Message) error
}

func (f *fakeConnector) Channel() models.Channel { return f.channel }
func (f *fakeConnector) Name() string            { return f.name }
func (f *fakeConnector) Send(ctx context.Context, recipient *models.GaiaUser, msg channels.Message) error {
	return f.send(ctx, recipient, msg)
}

type fixedFactory struct {
	conns []channels.Connector
}

func (f *fixedFactory) ForSchedule(_ *models.Schedule) []channels.Connector { return f.conns }

type fakeEngine struct {
	render func(ref string, ctx map[string]interface{}) (string, error)
}

func (f *fakeEngine) Render(ref string, ctx map[string]interface{}) (string, error) {
	if f.render != nil {
		return f.render(ref, ctx)
	}
	return "rendered body", nil
}

// stubGraph serves only staffed employees; every other relation is empty.
type stubGraph struct {
	employees []*models.Employee
}

func (g *stubGraph) EmployeesOfJob(context.Context, string) ([]*models.Employee, error) {
	return g.employees, nil
}
func (g *stubGraph) ClientsOfJob(context.Context, string) ([]*models.Client, error) { return nil, nil }
func (g *stubGraph) SubjectGroupsOfJob(context.Context, string) ([]*models.SubjectGroup, error) {
	return nil, nil
}
func (g *stubGraph) JobsOfSubjectGroup(context.Context, string) ([]*models.Job, error) {
	return nil, nil
}
func (g *stubGraph) ClientOfSubjectGroup(context.Context, string) (*models.Client, error) {
	return nil, nil
}
func (g *stubGraph) SubjectsOfSubjectGroup(context.Context, string) ([]*models.Subject, error) {
	return nil, nil
}
func (g *stubGraph) ParentsOfSubject(context.Context, string) ([]*models.GaiaUser, error) {
	return nil, nil
}
func (g *stubGraph) ContactsOfClient(context.Context, string) ([]*models.GaiaUser, error) {
	return nil, nil
}
func (g *stubGraph) BookedSession(context.Context, string, string) (*models.Session, error) {
	return nil, nil
}

// ==========================
// Fixtures
// ==========================

func employeeSchedule() *models.Schedule {
	return &models.Schedule{
		ID:           "sched-1",
		Name:         "job saved notice",
		Active:       true,
		TriggerType:  models.TriggerJob,
		StartTrigger: models.StartAfterJobSaved,
		CadenceUnit:  models.CadenceDays,
		CadenceCount: 1,
		Filters:      models.AudienceFilters{Employees: true},
		Template: &models.ContextualTemplate{
			ID:       "ct-1",
			Template: models.Template{ID: "t-1", Name: "job saved", Ref: "job_saved.tmpl"},
			Context: map[string]string{
				"email_subject": "New job scheduled",
				"first_name":    "@GaiaUser.first_name",
			},
		},
		EmailConnector: &models.EmailConnector{Name: "default", FromEmail: "noreply@example.com"},
	}
}

func jobRoot() models.Root {
	return models.Root{Job: &models.Job{
		ID:        "job-1",
		Name:      "spring shoot",
		StartTime: base.Add(24 * time.Hour),
		EndTime:   base.Add(30 * time.Hour),
	}}
}

func twoEmployees() []*models.Employee {
	return []*models.Employee{
		{ID: "emp-1", GaiaUser: &models.GaiaUser{ID: "u1", FirstName: "Ada", Email: "ada@example.com"}},
		{ID: "emp-2", GaiaUser: &models.GaiaUser{ID: "u2", FirstName: "Grace", Email: "grace@example.com"}},
	}
}

func newDispatcher(store Store, locker Locker, factory ConnectorFactory, graph audience.Provider) *Dispatcher {
	clock := fixedClock{now: base}
	return New(Config{
		Evaluator:  window.New(clock),
		Resolver:   audience.New(graph),
		Engine:     &fakeEngine{},
		Connectors: factory,
		Store:      store,
		Locker:     locker,
		Clock:      clock,
		PoolSize:   4,
		Logger:     logger.NewNoOpLogger(),
	})
}

// ==========================
// Tests
// ==========================

func TestDispatch_OneShotEmailToEmployees(t *testing.T) {
	store := newMockStore()
	locker := &mockLocker{}

	var mu sync.Mutex
	var recipients []string
	email := &fakeConnector{
		channel: models.ChannelEmail,
		name:    "default",
		send: func(_ context.Context, r *models.GaiaUser, msg channels.Message) error {
			mu.Lock()
			defer mu.Unlock()
			recipients = append(recipients, r.ID)
			assert.Equal(t, "New job scheduled", msg.Subject)
			return nil
		},
	}

	s := employeeSchedule()
	d := newDispatcher(store, locker, &fixedFactory{conns: []channels.Connector{email}}, &stubGraph{employees: twoEmployees()})

	result, err := d.Dispatch(context.Background(), s, jobRoot())
	assert.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, 2, result.Bundles)
	assert.Equal(t, 2, result.Sent[models.ChannelEmail])
	assert.Empty(t, result.Failures)
	assert.ElementsMatch(t, []string{"u1", "u2"}, recipients)

	// Bookkeeping: last sent advanced, one-shot retired, audit rows written.
	assert.Equal(t, base, store.lastSent[s.ID])
	assert.NotNil(t, s.LastSentAt)
	assert.Equal(t, []string{s.ID}, store.deactivated)
	assert.False(t, s.Active)
	assert.Len(t, store.notifications, 2)
	for _, n := range store.notifications {
		assert.Equal(t, models.ChannelEmail, n.Channel)
		assert.Equal(t, "default", n.Connector)
		assert.Equal(t, s.ID, n.ScheduleID)
		assert.NotEmpty(t, n.ID)
	}
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestDispatch_ChannelIsolation(t *testing.T) {
	// Email fails for every recipient, SMS succeeds for all: the result
	// carries both, last sent still advances.
	store := newMockStore()

	email := &fakeConnector{
		channel: models.ChannelEmail,
		name:    "default",
		send: func(_ context.Context, _ *models.GaiaUser, _ channels.Message) error {
			return errors.New("smtp relay down")
		},
	}
	var smsSent int
	var mu sync.Mutex
	sms := &fakeConnector{
		channel: models.ChannelSMS,
		name:    "sns",
		send: func(_ context.Context, _ *models.GaiaUser, _ channels.Message) error {
			mu.Lock()
			defer mu.Unlock()
			smsSent++
			return nil
		},
	}

	s := employeeSchedule()
	s.Recurring = true
	s.SMSConnector = &models.SMSConnector{Name: "sns"}
	d := newDispatcher(store, &mockLocker{}, &fixedFactory{conns: []channels.Connector{email, sms}}, &stubGraph{employees: twoEmployees()})

	result, err := d.Dispatch(context.Background(), s, jobRoot())
	assert.Error(t, err, "a fully failed channel surfaces an aggregated error")
	assert.Equal(t, 0, result.Sent[models.ChannelEmail])
	assert.Equal(t, 2, result.Sent[models.ChannelSMS])
	assert.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		assert.Equal(t, models.ChannelEmail, f.Channel)
	}
	assert.Equal(t, 2, smsSent)
	assert.Equal(t, base, store.lastSent[s.ID], "successful channel still advances last sent")
	assert.Empty(t, store.deactivated, "recurring schedule is not retired")
}

func TestDispatch_LockHeldSkips(t *testing.T) {
	store := newMockStore()
	email := &fakeConnector{
		channel: models.ChannelEmail,
		name:    "default",
		send: func(_ context.Context, _ *models.GaiaUser, _ channels.Message) error {
			t.Fatal("no delivery may happen while the lock is held")
			return nil
		},
	}

	s := employeeSchedule()
	d := newDispatcher(store, &mockLocker{held: true}, &fixedFactory{conns: []channels.Connector{email}}, &stubGraph{employees: twoEmployees()})

	result, err := d.Dispatch(context.Background(), s, jobRoot())
	assert.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, store.notifications)
}

func TestDispatch_InertScheduleIsNoOp(t *testing.T) {
	store := newMockStore()
	locker := &mockLocker{}

	s := employeeSchedule()
	s.EmailConnector = nil

	d := newDispatcher(store, locker, &fixedFactory{}, &stubGraph{employees: twoEmployees()})

	result, err := d.Dispatch(context.Background(), s, jobRoot())
	assert.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, 0, locker.acquired, "inert schedules do not even take the lock")
}

func TestDispatch_IneligibleSendsNothing(t *testing.T) {
	store := newMockStore()
	email := &fakeConnector{
		channel: models.ChannelEmail,
		name:    "default",
		send: func(_ context.Context, _ *models.GaiaUser, _ channels.Message) error {
			t.Fatal("no delivery for an ineligible schedule")
			return nil
		},
	}

	s := employeeSchedule()
	s.StartTrigger = models.StartAfterJobEnd // job has not ended at base time

	d := newDispatcher(store, &mockLocker{}, &fixedFactory{conns: []channels.Connector{email}}, &stubGraph{employees: twoEmployees()})

	result, err := d.Dispatch(context.Background(), s, jobRoot())
	assert.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Empty(t, store.lastSent)
}

func TestDispatch_RenderFailureIsIsolated(t *testing.T) {
	store := newMockStore()

	var delivered []string
	var mu sync.Mutex
	email := &fakeConnector{
		channel: models.ChannelEmail,
		name:    "default",
		send: func(_ context.Context, r *models.GaiaUser, _ channels.Message) error {
			mu.Lock()
			defer mu.Unlock()
			delivered = append(delivered, r.ID)
			return nil
		},
	}

	s := employeeSchedule()
	d := newDispatcher(store, &mockLocker{}, &fixedFactory{conns: []channels.Connector{email}}, &stubGraph{employees: twoEmployees()})
	d.engine = &fakeEngine{
		render: func(_ string, ctx map[string]interface{}) (string, error) {
			if ctx["first_name"] == "Ada" {
				return "", errors.New("template explode")
			}
			return "body", nil
		},
	}

	result, err := d.Dispatch(context.Background(), s, jobRoot())
	assert.NoError(t, err, "partial failure does not surface an error")
	assert.Equal(t, 1, result.Sent[models.ChannelEmail])
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, "u1", result.Failures[0].RecipientID)
	assert.Equal(t, []string{"u2"}, delivered)
	assert.Len(t, store.notifications, 1)
}
