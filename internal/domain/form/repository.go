package form

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var ErrFormNotFound = fmt.Errorf("form not found")
var ErrSectionNotFound = fmt.Errorf("form section not found")
var ErrTemplateNotFound = fmt.Errorf("template not found")

// Repository persists forms, their sections and templates.
type Repository interface {
	CreateForm(ctx context.Context, f *Form) error
	GetForm(ctx context.Context, formID uuid.UUID) (*Form, error)
	ListForms(ctx context.Context) ([]*Form, error)

	CreateSection(ctx context.Context, s *Section) error
	// GetSection loads the section together with its file template and uploaders.
	GetSection(ctx context.Context, formID, sectionID uuid.UUID) (*Section, error)
	ListSections(ctx context.Context, formID uuid.UUID) ([]*Section, error)
	AddUploader(ctx context.Context, formID, sectionID uuid.UUID, userID string) error

	CreateFileTemplate(ctx context.Context, t *FileTemplate) error
	CreateHTMLTemplate(ctx context.Context, t *HTMLTemplate) error
	GetHTMLTemplate(ctx context.Context, formID, templateID uuid.UUID) (*HTMLTemplate, error)
}
