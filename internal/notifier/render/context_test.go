package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/models"
)

func contextual(spec map[string]string) *models.ContextualTemplate {
	return &models.ContextualTemplate{
		ID:       "ct-1",
		Template: models.Template{ID: "t-1", Name: "welcome", Ref: "welcome.tmpl"},
		Context:  spec,
	}
}

func TestResolveContext_LiteralsAndReferences(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	bundle := models.ContextBundle{
		Recipient: &models.GaiaUser{ID: "u1", FirstName: "Ada", Email: "ada@example.com"},
		Job:       &models.Job{ID: "j1", Name: "spring shoot", StartTime: start},
	}

	ct := contextual(map[string]string{
		"email_subject": "Your photos are ready",
		"first_name":    "@GaiaUser.first_name",
		"job_name":      "@Job.name",
		"job_start":     "@Job.start_time",
	})

	got := ResolveContext(ct, bundle)
	assert.Equal(t, "Your photos are ready", got["email_subject"])
	assert.Equal(t, "Ada", got["first_name"])
	assert.Equal(t, "spring shoot", got["job_name"])
	assert.Equal(t, start, got["job_start"])
}

func TestResolveContext_MissingEntityIsNil(t *testing.T) {
	// A reference against an absent slot resolves to nil, never panics.
	bundle := models.ContextBundle{
		Recipient: &models.GaiaUser{ID: "u1", FirstName: "Ada"},
	}

	ct := contextual(map[string]string{
		"session_start": "@Session.start_time",
		"client_name":   "@Client.name",
		"group_name":    "@SubjectGroup.name",
	})

	got := ResolveContext(ct, bundle)
	assert.Len(t, got, 3)
	assert.Nil(t, got["session_start"])
	assert.Nil(t, got["client_name"])
	assert.Nil(t, got["group_name"])
}

func TestResolveContext_UnknownFieldIsNil(t *testing.T) {
	bundle := models.ContextBundle{
		Recipient: &models.GaiaUser{ID: "u1"},
	}

	ct := contextual(map[string]string{
		"mystery": "@GaiaUser.shoe_size",
	})

	got := ResolveContext(ct, bundle)
	assert.Nil(t, got["mystery"])
}

func TestValidateContextSpec(t *testing.T) {
	assert.NoError(t, ValidateContextSpec(map[string]string{
		"greeting":   "hello",
		"first_name": "@GaiaUser.first_name",
		"job_name":   "@Job.name",
	}))

	err := ValidateContextSpec(map[string]string{
		"bad": "@Spaceship.name",
	})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeContextKindUnknown))
}

func TestFileEngine_Render(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "welcome.tmpl")
	assert.NoError(t, os.WriteFile(path, []byte("Hello {{.first_name}}, see you at {{.job_name}}."), 0o644))

	engine := NewFileEngine(dir)
	out, err := engine.Render("welcome.tmpl", map[string]interface{}{
		"first_name": "Ada",
		"job_name":   "spring shoot",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Hello Ada, see you at spring shoot.", out)
}

func TestFileEngine_RenderMissingTemplate(t *testing.T) {
	engine := NewFileEngine(t.TempDir())
	_, err := engine.Render("missing.tmpl", nil)
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeTemplateRenderFailed))
}
