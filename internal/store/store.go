// Package store is the persistence layer: schedule loading and bookkeeping
// on Postgres, audience traversal queries, the per-schedule redis lock and
// the elasticsearch audit mirror.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/xeipuuv/gojsonschema"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/render"
)

// contextSchema validates the JSONB context column before it is trusted as a
// field-reference map. Values must all be strings.
const contextSchema = `{
	"type": "object",
	"additionalProperties": {"type": "string"}
}`

// Store implements dispatch.Store on Postgres plus an optional audit mirror.
type Store struct {
	db    *sql.DB
	audit *AuditIndexer
	log   logger.Logger
}

func New(db *sql.DB, audit *AuditIndexer, log logger.Logger) *Store {
	return &Store{db: db, audit: audit, log: log}
}

// ==========================
// Schedule bookkeeping
// ==========================

// DeactivateSchedule flips a schedule inactive. Already-inactive rows are
// left untouched, so repeated calls are safe.
func (s *Store) DeactivateSchedule(ctx context.Context, scheduleID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_schedules SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active = TRUE`,
		scheduleID)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("deactivate_schedule", err)
	}
	return nil
}

// SetLastSentAt records the moment a channel completed at least one delivery.
func (s *Store) SetLastSentAt(ctx context.Context, scheduleID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_schedules SET last_sent_at = $2, updated_at = NOW() WHERE id = $1`,
		scheduleID, at)
	if err != nil {
		return stderrors.NewQueryExecutionFailedError("set_last_sent_at", err)
	}
	return nil
}

// CreateNotification inserts the per-recipient audit row and mirrors it to
// the search index when one is configured. The mirror is best effort.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	scheduleID := sql.NullString{String: n.ScheduleID, Valid: n.ScheduleID != ""}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, template_id, schedule_id, recipient_id, channel, connector, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.TemplateID, scheduleID, n.RecipientID, string(n.Channel), n.Connector, n.CreatedAt)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	if s.audit != nil {
		if err := s.audit.Index(ctx, n); err != nil {
			s.log.WithError(err).Warn("audit mirror write failed", map[string]interface{}{
				"notificationId": n.ID,
			})
		}
	}
	return nil
}

// ==========================
// Schedule loading
// ==========================

// ListActiveSchedules loads every active schedule with its contextual
// template and connectors attached. Rows whose context column does not parse
// or references an unknown entity kind are skipped with a warning rather
// than failing the sweep.
func (s *Store) ListActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			ns.id, ns.name, ns.active, ns.recurring,
			ns.cadence_unit, ns.cadence_count,
			ns.trigger_type, ns.start_trigger, ns.end_trigger,
			ns.end_at, ns.last_sent_at,
			ns.f_employees, ns.f_clients_persons, ns.f_clients_schools, ns.f_clients_commercial_others,
			ns.f_subjects_booked, ns.f_subjects_parents_booked, ns.f_subjects_not_booked, ns.f_subjects_parents_not_booked,
			ct.id, t.id, t.name, t.ref, t.html, ct.context,
			ec.name, ec.from_email, ec.logo_path,
			sc.name, sc.sender_id,
			cc.name, cc.channel, cc.direct_to_user
		FROM notification_schedules ns
		LEFT JOIN contextual_templates ct ON ct.id = ns.contextual_template_id
		LEFT JOIN templates t ON t.id = ct.template_id
		LEFT JOIN email_connectors ec ON ec.id = ns.email_connector_id
		LEFT JOIN sms_connectors sc ON sc.id = ns.sms_connector_id
		LEFT JOIN chat_connectors cc ON cc.id = ns.chat_connector_id
		WHERE ns.active = TRUE
		ORDER BY ns.id`)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list_active_schedules", err)
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		sched, err := s.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		if sched.Template != nil {
			if err := render.ValidateContextSpec(sched.Template.Context); err != nil {
				s.log.WithError(err).Warn("schedule has an invalid context spec, skipping", map[string]interface{}{
					"scheduleId": sched.ID,
				})
				continue
			}
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("list_active_schedules", err)
	}
	return schedules, nil
}

func (s *Store) scanSchedule(rows *sql.Rows) (*models.Schedule, error) {
	var (
		sched      models.Schedule
		endTrigger sql.NullString
		endAt      sql.NullTime
		lastSentAt sql.NullTime

		ctID, tID, tName, tRef sql.NullString
		tHTML                  sql.NullBool
		ctContext              []byte

		ecName, ecFrom, ecLogo sql.NullString
		scName, scSender       sql.NullString
		ccName, ccChannel      sql.NullString
		ccDirect               sql.NullBool
	)

	err := rows.Scan(
		&sched.ID, &sched.Name, &sched.Active, &sched.Recurring,
		&sched.CadenceUnit, &sched.CadenceCount,
		&sched.TriggerType, &sched.StartTrigger, &endTrigger,
		&endAt, &lastSentAt,
		&sched.Filters.Employees, &sched.Filters.ClientsPersons, &sched.Filters.ClientsSchools, &sched.Filters.ClientsCommercialOthers,
		&sched.Filters.SubjectsBooked, &sched.Filters.SubjectsParentsBooked, &sched.Filters.SubjectsNotBooked, &sched.Filters.SubjectsParentsNotBooked,
		&ctID, &tID, &tName, &tRef, &tHTML, &ctContext,
		&ecName, &ecFrom, &ecLogo,
		&scName, &scSender,
		&ccName, &ccChannel, &ccDirect,
	)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("scan_schedule", err)
	}

	sched.EndTrigger = models.EndTrigger(endTrigger.String)
	if endAt.Valid {
		sched.EndAt = &endAt.Time
	}
	if lastSentAt.Valid {
		sched.LastSentAt = &lastSentAt.Time
	}

	if ctID.Valid {
		contextMap, err := parseContext(ctContext)
		if err != nil {
			return nil, err
		}
		sched.Template = &models.ContextualTemplate{
			ID: ctID.String,
			Template: models.Template{
				ID:   tID.String,
				Name: tName.String,
				Ref:  tRef.String,
				HTML: tHTML.Bool,
			},
			Context: contextMap,
		}
	}

	if ecName.Valid {
		sched.EmailConnector = &models.EmailConnector{
			Name:      ecName.String,
			FromEmail: ecFrom.String,
			LogoPath:  ecLogo.String,
		}
	}
	if scName.Valid {
		sched.SMSConnector = &models.SMSConnector{
			Name:     scName.String,
			SenderID: scSender.String,
		}
	}
	if ccName.Valid {
		sched.ChatConnector = &models.ChatConnector{
			Name:         ccName.String,
			Channel:      ccChannel.String,
			DirectToUser: ccDirect.Bool,
		}
	}

	return &sched, nil
}

// parseContext validates and decodes the JSONB context column.
func parseContext(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(contextSchema),
		gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, stderrors.NewConfigurationInvalidError("context column is not valid JSON: " + err.Error())
	}
	if !result.Valid() {
		return nil, stderrors.NewConfigurationInvalidError("context column must map string keys to string references")
	}

	var contextMap map[string]string
	if err := json.Unmarshal(raw, &contextMap); err != nil {
		return nil, stderrors.NewConfigurationInvalidError("context column decode failed: " + err.Error())
	}
	return contextMap, nil
}
