package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dashboard_report_bot/internal/domain/datafile"
	"dashboard_report_bot/internal/domain/form"
	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/domain/spreadsheet"

	"github.com/google/uuid"
)

type PostgresDataFileRepository struct {
	db *sql.DB
}

func NewPostgresDataFileRepository(db *sql.DB) *PostgresDataFileRepository {
	return &PostgresDataFileRepository{db: db}
}

// Period filters are half-open on End so they do not depend on timestamp precision.
const fileSourceQuery = `SELECT fs.form_id, fs.form_section_id, fs.id, fs.file_template_id, fs.html_template_id,
       fs.creator_id, fs.file_name, fs.extension, fs.size, fs.path, fs.comment, fs.source_date, fs.created_at,
       fs.is_confirmed, fs.confirmer_id, fs.confirmed_at, fs.is_deleted, fs.deleter_id, fs.deleted_at,
       f.name, s.name
  FROM file_sources fs
  JOIN forms f ON f.id = fs.form_id
  JOIN form_sections s ON s.id = fs.form_section_id`

func scanFileSource(row interface{ Scan(...any) error }) (*datafile.FileSource, error) {
	fs := &datafile.FileSource{}
	err := row.Scan(&fs.FormID, &fs.FormSectionID, &fs.ID, &fs.FileTemplateID, &fs.HTMLTemplateID,
		&fs.CreatorID, &fs.FileName, &fs.Extension, &fs.Size, &fs.Path, &fs.Comment, &fs.SourceDate, &fs.CreatedAt,
		&fs.IsConfirmed, &fs.ConfirmerID, &fs.ConfirmedAt, &fs.IsDeleted, &fs.DeleterID, &fs.DeletedAt,
		&fs.FormName, &fs.FormSectionName)
	return fs, err
}

func listFileSources(ctx context.Context, q queryer, where string, args ...any) ([]*datafile.FileSource, error) {
	rows, err := q.QueryContext(ctx, fileSourceQuery+` WHERE `+where+` ORDER BY fs.created_at, fs.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing file sources: %w", err)
	}
	defer rows.Close()

	files := make([]*datafile.FileSource, 0)
	for rows.Next() {
		fs, err := scanFileSource(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning file source: %w", err)
		}
		files = append(files, fs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file sources: %w", err)
	}
	return files, nil
}

func listByForm(ctx context.Context, q queryer, formID uuid.UUID, r period.DateRange) ([]*datafile.FileSource, error) {
	return listFileSources(ctx, q,
		`fs.form_id = $1 AND fs.is_deleted = FALSE AND fs.source_date >= $2 AND fs.source_date < $3`,
		formID, utc(r.Begin), utc(r.EndExclusive()))
}

func (r *PostgresDataFileRepository) Begin(ctx context.Context) (datafile.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	return &dataFileTx{tx: tx}, nil
}

func (r *PostgresDataFileRepository) GetFileSource(ctx context.Context, formID, sectionID, fileSourceID uuid.UUID) (*datafile.FileSource, error) {
	fs, err := scanFileSource(r.db.QueryRowContext(ctx, fileSourceQuery+` WHERE fs.form_id = $1 AND fs.form_section_id = $2 AND fs.id = $3`,
		formID, sectionID, fileSourceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, datafile.ErrFileSourceNotFound
		}
		return nil, fmt.Errorf("error getting file source: %w", err)
	}
	return fs, nil
}

func (r *PostgresDataFileRepository) ListByForm(ctx context.Context, formID uuid.UUID, rng period.DateRange) ([]*datafile.FileSource, error) {
	return listByForm(ctx, r.db, formID, rng)
}

// ListCellValues returns the cells of live uploads in q.Range, oldest upload first.
func (r *PostgresDataFileRepository) ListCellValues(ctx context.Context, q datafile.CellValueQuery) ([]*datafile.StoredCellValue, error) {
	query := `SELECT s.script_variable, cv.form_id, cv.form_section_id, cv.file_source_id, cv.sheet_name,
       cv.cell_column, cv.cell_row, cv.value, cv.value_type, cv.created_at
  FROM cell_values cv
  JOIN file_sources fs ON fs.id = cv.file_source_id
  JOIN form_sections s ON s.id = cv.form_section_id
 WHERE cv.form_id = $1
   AND fs.is_deleted = FALSE
   AND fs.source_date >= $2 AND fs.source_date < $3
   AND ($4 = FALSE OR fs.is_confirmed = TRUE OR fs.creator_id = $5)
   AND (CAST($6 AS TEXT) = '' OR EXISTS (
        SELECT 1 FROM section_uploaders su WHERE su.section_id = s.id AND su.user_id = $6))
 ORDER BY s.script_variable, fs.created_at, cv.sheet_name, cv.cell_row, cv.cell_column`

	rows, err := r.db.QueryContext(ctx, query, q.FormID, utc(q.Range.Begin), utc(q.Range.EndExclusive()),
		q.OnlyConfirmed, q.RequesterID, q.RestrictToUserID)
	if err != nil {
		return nil, fmt.Errorf("error listing cell values: %w", err)
	}
	defer rows.Close()

	values := make([]*datafile.StoredCellValue, 0)
	for rows.Next() {
		v := &datafile.StoredCellValue{}
		var text, typ string
		if err := rows.Scan(&v.ScriptVariable, &v.FormID, &v.FormSectionID, &v.FileSourceID, &v.SheetName,
			&v.Column, &v.Row, &text, &typ, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning cell value: %w", err)
		}
		v.Type = spreadsheet.ParseCellType(typ)
		v.Value = datafile.DecodeValue(text, v.Type)
		values = append(values, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cell values: %w", err)
	}
	return values, nil
}

// dataFileTx runs every read and write of one lifecycle operation on the same *sql.Tx.
type dataFileTx struct {
	tx *sql.Tx
}

func (t *dataFileTx) ListBySection(ctx context.Context, formID, sectionID uuid.UUID, r period.DateRange) ([]*datafile.FileSource, error) {
	return listFileSources(ctx, t.tx,
		`fs.form_id = $1 AND fs.form_section_id = $2 AND fs.is_deleted = FALSE AND fs.source_date >= $3 AND fs.source_date < $4`,
		formID, sectionID, utc(r.Begin), utc(r.EndExclusive()))
}

func (t *dataFileTx) ListByForm(ctx context.Context, formID uuid.UUID, r period.DateRange) ([]*datafile.FileSource, error) {
	return listByForm(ctx, t.tx, formID, r)
}

func (t *dataFileTx) Insert(ctx context.Context, fs *datafile.FileSource) error {
	query := `INSERT INTO file_sources (id, form_id, form_section_id, file_template_id, html_template_id, creator_id,
               file_name, extension, size, path, comment, source_date, created_at, is_confirmed, is_deleted)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := t.tx.ExecContext(ctx, query, fs.ID, fs.FormID, fs.FormSectionID, fs.FileTemplateID, fs.HTMLTemplateID, fs.CreatorID,
		fs.FileName, fs.Extension, fs.Size, fs.Path, fs.Comment, utc(fs.SourceDate), utc(fs.CreatedAt), fs.IsConfirmed, fs.IsDeleted)
	if err != nil {
		return fmt.Errorf("error inserting file source: %w", err)
	}
	return nil
}

func (t *dataFileTx) InsertCellValues(ctx context.Context, values []*datafile.CellValue) error {
	stmt, err := t.tx.PrepareContext(ctx, `INSERT INTO cell_values (file_source_id, form_id, form_section_id, sheet_name,
               cell_column, cell_row, value, value_type, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("error preparing cell value insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		_, err := stmt.ExecContext(ctx, v.FileSourceID, v.FormID, v.FormSectionID, v.SheetName,
			v.Column, v.Row, datafile.EncodeValue(v.Value), v.Type.String(), utc(v.CreatedAt))
		if err != nil {
			return fmt.Errorf("error inserting cell value %s!%s: %w", v.SheetName, v.Location(), err)
		}
	}
	return nil
}

func (t *dataFileTx) MarkConfirmed(ctx context.Context, fs *datafile.FileSource, htmlTemplateID uuid.UUID, confirmerID string, at time.Time) error {
	query := `UPDATE file_sources
               SET is_confirmed = TRUE, html_template_id = $1, confirmer_id = $2, confirmed_at = $3
               WHERE id = $4 AND is_deleted = FALSE`
	return t.exec(ctx, fs.ID, query, htmlTemplateID, confirmerID, utc(at), fs.ID)
}

func (t *dataFileTx) MarkUnconfirmed(ctx context.Context, fs *datafile.FileSource) error {
	query := `UPDATE file_sources
               SET is_confirmed = FALSE, confirmer_id = NULL, confirmed_at = NULL
               WHERE id = $1 AND is_deleted = FALSE`
	return t.exec(ctx, fs.ID, query, fs.ID)
}

func (t *dataFileTx) SoftDelete(ctx context.Context, fs *datafile.FileSource, deleterID string, at time.Time) error {
	query := `UPDATE file_sources
               SET is_deleted = TRUE, deleter_id = $1, deleted_at = $2
               WHERE id = $3 AND is_deleted = FALSE`
	return t.exec(ctx, fs.ID, query, deleterID, utc(at), fs.ID)
}

func (t *dataFileTx) exec(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating file source %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", datafile.ErrFileSourceNotFound, id)
	}
	return nil
}

func (t *dataFileTx) GetHTMLTemplate(ctx context.Context, formID, templateID uuid.UUID) (*form.HTMLTemplate, error) {
	return getHTMLTemplate(ctx, t.tx, formID, templateID)
}

func (t *dataFileTx) CreateHTMLTemplate(ctx context.Context, tmpl *form.HTMLTemplate) error {
	return insertHTMLTemplate(ctx, t.tx, tmpl)
}

func (t *dataFileTx) TouchLastConfirmed(ctx context.Context, formID uuid.UUID, sourceDate time.Time) error {
	query := `UPDATE forms
               SET last_confirmed_source_date = $1
               WHERE id = $2 AND (last_confirmed_source_date IS NULL OR last_confirmed_source_date < $1)`
	if _, err := t.tx.ExecContext(ctx, query, utc(sourceDate), formID); err != nil {
		return fmt.Errorf("error updating last confirmed date of form %s: %w", formID, err)
	}
	return nil
}

func (t *dataFileTx) Commit() error {
	return t.tx.Commit()
}

// Rollback after a successful commit is a no-op.
func (t *dataFileTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
