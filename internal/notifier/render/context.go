// Package render resolves a contextual template's field references against a
// bundle and renders the message body.
package render

import (
	"gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/models"
)

// accessor reads one named field off an entity. Accessor tables replace
// per-render string matching; an unknown kind is rejected at validation time
// and an unknown field resolves to nil.
type accessor func(entity interface{}, field string) interface{}

var accessors = map[models.EntityKind]accessor{
	models.KindGaiaUser: func(entity interface{}, field string) interface{} {
		u := entity.(*models.GaiaUser)
		switch field {
		case "id":
			return u.ID
		case "first_name":
			return u.FirstName
		case "last_name":
			return u.LastName
		case "email":
			return u.Email
		case "phone_number":
			return u.PhoneNumber
		case "slack_handle":
			return u.SlackHandle
		}
		return nil
	},
	models.KindJob: func(entity interface{}, field string) interface{} {
		j := entity.(*models.Job)
		switch field {
		case "id":
			return j.ID
		case "name":
			return j.Name
		case "start_time":
			return j.StartTime
		case "end_time":
			return j.EndTime
		case "location":
			return j.Location
		}
		return nil
	},
	models.KindSubjectGroup: func(entity interface{}, field string) interface{} {
		sg := entity.(*models.SubjectGroup)
		switch field {
		case "id":
			return sg.ID
		case "name":
			return sg.Name
		case "start_time":
			return sg.StartTime
		case "end_time":
			return sg.EndTime
		case "photos_available":
			return sg.PhotosAvailable
		}
		return nil
	},
	models.KindSession: func(entity interface{}, field string) interface{} {
		se := entity.(*models.Session)
		switch field {
		case "id":
			return se.ID
		case "start_time":
			return se.StartTime
		}
		return nil
	},
	models.KindEmployee: func(entity interface{}, field string) interface{} {
		e := entity.(*models.Employee)
		switch field {
		case "id":
			return e.ID
		case "title":
			return e.Title
		case "first_name":
			if e.GaiaUser != nil {
				return e.GaiaUser.FirstName
			}
		case "last_name":
			if e.GaiaUser != nil {
				return e.GaiaUser.LastName
			}
		}
		return nil
	},
	models.KindClient: func(entity interface{}, field string) interface{} {
		c := entity.(*models.Client)
		switch field {
		case "id":
			return c.ID
		case "name":
			return c.Name
		case "category":
			return string(c.Category)
		}
		return nil
	},
	models.KindSubject: func(entity interface{}, field string) interface{} {
		s := entity.(*models.Subject)
		switch field {
		case "id":
			return s.ID
		case "first_name":
			if s.GaiaUser != nil {
				return s.GaiaUser.FirstName
			}
		case "last_name":
			if s.GaiaUser != nil {
				return s.GaiaUser.LastName
			}
		}
		return nil
	},
}

// ValidateContextSpec checks every non-literal reference against the accessor
// table. Run once at load time, not per render.
func ValidateContextSpec(spec map[string]string) error {
	for _, value := range spec {
		ref := models.ParseFieldRef(value)
		if ref.IsLiteral() {
			continue
		}
		if _, ok := accessors[ref.Kind]; !ok {
			return errors.NewContextKindUnknownError(value)
		}
	}
	return nil
}

// ResolveContext maps the contextual template's spec against a bundle.
// Literals pass through verbatim; a reference against an absent slot resolves
// to nil, never an error.
func ResolveContext(ct *models.ContextualTemplate, bundle models.ContextBundle) map[string]interface{} {
	out := make(map[string]interface{}, len(ct.Context))
	for key, value := range ct.Context {
		ref := models.ParseFieldRef(value)
		if ref.IsLiteral() {
			out[key] = ref.Literal
			continue
		}

		read, ok := accessors[ref.Kind]
		if !ok {
			out[key] = nil
			continue
		}

		entity := bundle.Entity(ref.Kind)
		if entity == nil {
			out[key] = nil
			continue
		}
		out[key] = read(entity, ref.Field)
	}
	return out
}
