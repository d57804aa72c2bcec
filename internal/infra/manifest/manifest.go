package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/form"
	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Manifest declares users and forms to provision.
type Manifest struct {
	Users []UserSpec `yaml:"users"`
	Forms []FormSpec `yaml:"forms"`
}

type UserSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Group      string `yaml:"group"`
	TelegramID int64  `yaml:"telegram_id"`
}

type FormSpec struct {
	ID                uuid.UUID        `yaml:"id"`
	Name              string           `yaml:"name"`
	Description       string           `yaml:"description"`
	Interval          string           `yaml:"interval"`
	UploadWeekOfMonth int              `yaml:"upload_week_of_month"`
	UploadDay         string           `yaml:"upload_day"`
	Disabled          bool             `yaml:"disabled"`
	HTMLTemplate      HTMLTemplateSpec `yaml:"html_template"`
	Sections          []SectionSpec    `yaml:"sections"`
}

type HTMLTemplateSpec struct {
	Description string `yaml:"description"`
	HTML        string `yaml:"html"`
	Script      string `yaml:"script"`
	Style       string `yaml:"style"`
}

type SectionSpec struct {
	ID             uuid.UUID        `yaml:"id"`
	Name           string           `yaml:"name"`
	ScriptVariable string           `yaml:"script_variable"`
	Uploaders      []string         `yaml:"uploaders"`
	FileTemplate   FileTemplateSpec `yaml:"file_template"`
}

type FileTemplateSpec struct {
	FileName           string `yaml:"file_name"`
	form.ParseTemplate `yaml:",inline"`
}

// Load reads a manifest from a YAML file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Admin is what provisioning needs from the admin service.
type Admin interface {
	AddUser(ctx context.Context, actor *user.User, u *user.User) error
	ListForms(ctx context.Context) ([]*form.Form, error)
	CreateForm(ctx context.Context, actor *user.User, f *form.Form, tmpl *form.HTMLTemplate) error
	CreateSection(ctx context.Context, actor *user.User, sec *form.Section, ft *form.FileTemplate) error
}

// Result counts what Apply created and what already existed.
type Result struct {
	UsersCreated    int
	UsersSkipped    int
	FormsCreated    int
	FormsSkipped    int
	SectionsCreated int
}

// Apply provisions the manifest. Existing users and forms with the same name are left untouched,
// so applying a manifest twice is harmless.
func Apply(ctx context.Context, admin Admin, actor *user.User, m *Manifest, logger *logrus.Entry) (Result, error) {
	var res Result

	for _, spec := range m.Users {
		u, err := spec.toUser()
		if err != nil {
			return res, err
		}
		err = admin.AddUser(ctx, actor, u)
		switch {
		case errors.Is(err, app.ErrUserAlreadyExists):
			logger.WithField("user_id", u.ID).Info("User already exists, skipping")
			res.UsersSkipped++
		case err != nil:
			return res, fmt.Errorf("user %s: %w", u.ID, err)
		default:
			res.UsersCreated++
		}
	}

	existing, err := admin.ListForms(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list forms: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, f := range existing {
		names[f.Name] = true
	}

	for _, spec := range m.Forms {
		if names[spec.Name] {
			logger.WithField("form_name", spec.Name).Info("Form already exists, skipping")
			res.FormsSkipped++
			continue
		}
		f, err := spec.toForm()
		if err != nil {
			return res, err
		}
		tmpl := &form.HTMLTemplate{
			Description:   spec.HTMLTemplate.Description,
			HTMLContent:   spec.HTMLTemplate.HTML,
			ScriptContent: spec.HTMLTemplate.Script,
			StyleContent:  spec.HTMLTemplate.Style,
		}
		if err := admin.CreateForm(ctx, actor, f, tmpl); err != nil {
			return res, fmt.Errorf("form %q: %w", spec.Name, err)
		}
		names[spec.Name] = true
		res.FormsCreated++

		for _, sspec := range spec.Sections {
			sec := &form.Section{
				FormID:         f.ID,
				ID:             sspec.ID,
				Name:           sspec.Name,
				ScriptVariable: sspec.ScriptVariable,
				IsEnabled:      true,
				Uploaders:      sspec.Uploaders,
			}
			if sec.ScriptVariable == "" {
				sec.ScriptVariable = sec.Name
			}
			ft := &form.FileTemplate{FileName: sspec.FileTemplate.FileName, ParseTemplate: sspec.FileTemplate.ParseTemplate}
			if err := admin.CreateSection(ctx, actor, sec, ft); err != nil {
				return res, fmt.Errorf("form %q section %q: %w", spec.Name, sspec.Name, err)
			}
			res.SectionsCreated++
		}
		logger.WithFields(f.LogFields()).WithField("sections", len(spec.Sections)).Info("Form provisioned")
	}
	return res, nil
}

func (s UserSpec) toUser() (*user.User, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("user without id")
	}
	group, err := user.ParseGroupType(s.Group)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", s.ID, err)
	}
	u := &user.User{ID: s.ID, Name: s.Name, Group: group}
	if u.Name == "" {
		u.Name = s.ID
	}
	if s.TelegramID != 0 {
		u.TelegramID = sql.NullInt64{Int64: s.TelegramID, Valid: true}
	}
	return u, nil
}

func (s FormSpec) toForm() (*form.Form, error) {
	iv, err := period.ParseInterval(s.Interval)
	if err != nil {
		return nil, fmt.Errorf("form %q: %w", s.Name, err)
	}
	day, err := period.ParseUploadDay(s.UploadDay)
	if err != nil {
		return nil, fmt.Errorf("form %q: %w", s.Name, err)
	}
	return &form.Form{
		ID:                s.ID,
		Name:              s.Name,
		Description:       s.Description,
		Interval:          iv,
		UploadWeekOfMonth: s.UploadWeekOfMonth,
		UploadDay:         day,
		IsEnabled:         !s.Disabled,
	}, nil
}
