package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dashboard_report_bot/internal/domain/form"

	"github.com/google/uuid"
)

type PostgresFormRepository struct {
	db *sql.DB
}

func NewPostgresFormRepository(db *sql.DB) *PostgresFormRepository {
	return &PostgresFormRepository{db: db}
}

// --- Form Methods ---

const formColumns = `id, html_template_id, name, description, upload_interval, upload_week_of_month,
       upload_day, is_enabled, is_deleted, creator_id, created_at, updated_at, last_confirmed_source_date`

func scanForm(row interface{ Scan(...any) error }) (*form.Form, error) {
	f := &form.Form{}
	err := row.Scan(&f.ID, &f.HTMLTemplateID, &f.Name, &f.Description, &f.Interval, &f.UploadWeekOfMonth,
		&f.UploadDay, &f.IsEnabled, &f.IsDeleted, &f.CreatorID, &f.CreatedAt, &f.UpdatedAt, &f.LastConfirmedSourceDate)
	return f, err
}

func (r *PostgresFormRepository) CreateForm(ctx context.Context, f *form.Form) error {
	query := `INSERT INTO forms (` + formColumns + `)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query, f.ID, f.HTMLTemplateID, f.Name, f.Description, f.Interval, f.UploadWeekOfMonth,
		f.UploadDay, f.IsEnabled, f.IsDeleted, f.CreatorID, utc(f.CreatedAt), nullUTC(f.UpdatedAt), nullUTC(f.LastConfirmedSourceDate))
	if err != nil {
		return fmt.Errorf("error creating form: %w", err)
	}
	return nil
}

func (r *PostgresFormRepository) GetForm(ctx context.Context, formID uuid.UUID) (*form.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE id = $1`
	f, err := scanForm(r.db.QueryRowContext(ctx, query, formID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, form.ErrFormNotFound
		}
		return nil, fmt.Errorf("error getting form by ID: %w", err)
	}
	return f, nil
}

func (r *PostgresFormRepository) ListForms(ctx context.Context) ([]*form.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE is_deleted = FALSE ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing forms: %w", err)
	}
	defer rows.Close()

	forms := make([]*form.Form, 0)
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning form: %w", err)
		}
		forms = append(forms, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forms: %w", err)
	}
	return forms, nil
}

// --- Section Methods ---

const sectionQuery = `SELECT s.form_id, s.id, s.file_template_id, s.name, s.script_variable, s.is_enabled,
       s.is_deleted, s.creator_id, s.created_at, f.name,
       t.id, t.file_name, t.parse_template, t.creator_id, t.created_at
  FROM form_sections s
  JOIN forms f ON f.id = s.form_id
  LEFT JOIN file_templates t ON t.id = s.file_template_id`

func scanSection(row interface{ Scan(...any) error }) (*form.Section, error) {
	s := &form.Section{}
	var (
		tmplID, tmplFile, tmplBody, tmplCreator sql.NullString
		tmplCreatedAt                           sql.NullTime
	)
	err := row.Scan(&s.FormID, &s.ID, &s.FileTemplateID, &s.Name, &s.ScriptVariable, &s.IsEnabled,
		&s.IsDeleted, &s.CreatorID, &s.CreatedAt, &s.FormName,
		&tmplID, &tmplFile, &tmplBody, &tmplCreator, &tmplCreatedAt)
	if err != nil {
		return nil, err
	}
	if !tmplID.Valid {
		return s, nil
	}

	ft := &form.FileTemplate{
		FormID:    s.FormID,
		SectionID: s.ID,
		FileName:  tmplFile.String,
		CreatorID: tmplCreator.String,
		CreatedAt: tmplCreatedAt.Time,
	}
	if ft.ID, err = uuid.Parse(tmplID.String); err != nil {
		return nil, fmt.Errorf("error parsing file template id %q: %w", tmplID.String, err)
	}
	if err := json.Unmarshal([]byte(tmplBody.String), &ft.ParseTemplate); err != nil {
		return nil, fmt.Errorf("error decoding parse template %s: %w", ft.ID, err)
	}
	s.FileTemplate = ft
	return s, nil
}

func (r *PostgresFormRepository) CreateSection(ctx context.Context, s *form.Section) error {
	query := `INSERT INTO form_sections (id, form_id, file_template_id, name, script_variable, is_enabled, is_deleted, creator_id, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	fileTemplateID := ""
	if s.FileTemplateID != uuid.Nil {
		fileTemplateID = s.FileTemplateID.String()
	}
	_, err := r.db.ExecContext(ctx, query, s.ID, s.FormID, fileTemplateID, s.Name, s.ScriptVariable, s.IsEnabled, s.IsDeleted, s.CreatorID, utc(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("error creating form section: %w", err)
	}
	return nil
}

func (r *PostgresFormRepository) GetSection(ctx context.Context, formID, sectionID uuid.UUID) (*form.Section, error) {
	s, err := scanSection(r.db.QueryRowContext(ctx, sectionQuery+` WHERE s.form_id = $1 AND s.id = $2`, formID, sectionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, form.ErrSectionNotFound
		}
		return nil, fmt.Errorf("error getting form section: %w", err)
	}
	if s.Uploaders, err = r.uploaders(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresFormRepository) ListSections(ctx context.Context, formID uuid.UUID) ([]*form.Section, error) {
	rows, err := r.db.QueryContext(ctx, sectionQuery+` WHERE s.form_id = $1 AND s.is_deleted = FALSE ORDER BY s.name, s.id`, formID)
	if err != nil {
		return nil, fmt.Errorf("error listing form sections: %w", err)
	}
	sections := make([]*form.Section, 0)
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning form section: %w", err)
		}
		sections = append(sections, s)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating form sections: %w", err)
	}

	// rows must be closed first: SQLite runs on a single connection
	for _, s := range sections {
		if s.Uploaders, err = r.uploaders(ctx, s.ID); err != nil {
			return nil, err
		}
	}
	return sections, nil
}

func (r *PostgresFormRepository) uploaders(ctx context.Context, sectionID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM section_uploaders WHERE section_id = $1 ORDER BY user_id`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("error listing uploaders of section %s: %w", sectionID, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning uploader: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresFormRepository) AddUploader(ctx context.Context, formID, sectionID uuid.UUID, userID string) error {
	query := `INSERT INTO section_uploaders (form_id, section_id, user_id) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, formID, sectionID, userID); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("error adding uploader %s to section %s: %w", userID, sectionID, err)
	}
	return nil
}

// --- Template Methods ---

// CreateFileTemplate stores the template and makes it the section's current one.
func (r *PostgresFormRepository) CreateFileTemplate(ctx context.Context, t *form.FileTemplate) error {
	body, err := json.Marshal(t.ParseTemplate)
	if err != nil {
		return fmt.Errorf("error encoding parse template: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO file_templates (id, form_id, section_id, file_name, parse_template, creator_id, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query, t.ID, t.FormID, t.SectionID, t.FileName, string(body), t.CreatorID, utc(t.CreatedAt)); err != nil {
		return fmt.Errorf("error creating file template: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE form_sections SET file_template_id = $1 WHERE form_id = $2 AND id = $3`, t.ID, t.FormID, t.SectionID)
	if err != nil {
		return fmt.Errorf("error linking file template to section: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return form.ErrSectionNotFound
	}
	return tx.Commit()
}

func (r *PostgresFormRepository) CreateHTMLTemplate(ctx context.Context, t *form.HTMLTemplate) error {
	return insertHTMLTemplate(ctx, r.db, t)
}

func (r *PostgresFormRepository) GetHTMLTemplate(ctx context.Context, formID, templateID uuid.UUID) (*form.HTMLTemplate, error) {
	return getHTMLTemplate(ctx, r.db, formID, templateID)
}

func insertHTMLTemplate(ctx context.Context, q queryer, t *form.HTMLTemplate) error {
	query := `INSERT INTO html_templates (id, form_id, description, script_content, html_content, style_content, creator_id, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.ExecContext(ctx, query, t.ID, t.FormID, t.Description, t.ScriptContent, t.HTMLContent, t.StyleContent,
		t.CreatorID, utc(t.CreatedAt), nullUTC(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("error creating html template: %w", err)
	}
	return nil
}

func getHTMLTemplate(ctx context.Context, q queryer, formID, templateID uuid.UUID) (*form.HTMLTemplate, error) {
	query := `SELECT id, form_id, description, script_content, html_content, style_content, creator_id, created_at, updated_at
               FROM html_templates WHERE form_id = $1 AND id = $2`
	t := &form.HTMLTemplate{}
	err := q.QueryRowContext(ctx, query, formID, templateID).Scan(&t.ID, &t.FormID, &t.Description, &t.ScriptContent,
		&t.HTMLContent, &t.StyleContent, &t.CreatorID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, form.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("error getting html template: %w", err)
	}
	return t, nil
}
