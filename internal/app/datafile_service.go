package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dashboard_report_bot/internal/domain/datafile"
	"dashboard_report_bot/internal/domain/form"
	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/domain/spreadsheet"
	"dashboard_report_bot/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DataFileOptions configures the data file lifecycle.
type DataFileOptions struct {
	UploadRoot string
	// Anchor decides which partial first week of a month counts as week 1.
	Anchor time.Weekday
	// CopyTemplateOnConfirm freezes a copy of the form's HTML template for each confirmation.
	CopyTemplateOnConfirm bool
}

// DataFileService drives uploads through upload, confirmation, cancellation and deletion.
type DataFileService struct {
	forms  form.Repository
	files  datafile.Repository
	opener spreadsheet.Opener
	opts   DataFileOptions
	now    func() time.Time
	logger *logrus.Entry
}

func NewDataFileService(
	fr form.Repository,
	dr datafile.Repository,
	opener spreadsheet.Opener,
	opts DataFileOptions,
	logger *logrus.Entry,
) *DataFileService {
	return &DataFileService{
		forms:  fr,
		files:  dr,
		opener: opener,
		opts:   opts,
		now:    time.Now,
		logger: logger.WithField("service", "data_file"),
	}
}

// FormData is what a dashboard renders for one period.
type FormData struct {
	Form         *form.Form
	Window       period.Window
	Values       map[string]*datafile.CellValues
	HTMLTemplate *form.HTMLTemplate
}

// PeriodFiles lists the live uploads of a form for one period.
type PeriodFiles struct {
	Form  *form.Form
	Range period.DateRange
	Files []*datafile.FileSource
}

// AddDataFileSourceFromReader stores the uploaded bytes under fs.Path and registers the upload.
// Nothing is written for an upload that the actor, section or format rules reject, and the
// stored file is removed again when registration fails.
func (s *DataFileService) AddDataFileSourceFromReader(ctx context.Context, actor *user.User, fs *datafile.FileSource, r io.Reader) error {
	if _, _, err := s.uploadSection(ctx, actor, fs); err != nil {
		return err
	}
	ext := fs.Extension
	if ext == "" {
		ext = filepath.Ext(fs.FileName)
	}
	if _, err := spreadsheet.FormatFromExtension(ext); err != nil {
		return fmt.Errorf("upload %s: %w", fs.FileName, err)
	}

	if fs.Path == "" {
		fs.Path = filepath.Join(fs.FormID.String(), fs.FormSectionID.String(), uuid.NewString()+filepath.Ext(fs.FileName))
	}
	dst := filepath.Join(s.opts.UploadRoot, fs.Path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("error creating upload directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating upload file %s: %w", dst, err)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.discard(dst)
		return fmt.Errorf("error writing upload file %s: %w", dst, err)
	}
	fs.Size = n
	if err := s.AddDataFileSource(ctx, actor, fs); err != nil {
		s.discard(dst)
		return err
	}
	return nil
}

func (s *DataFileService) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).WithField("path", path).Warn("Failed to remove rejected upload")
	}
}

// uploadSection resolves the target section and checks that actor may upload into it.
func (s *DataFileService) uploadSection(ctx context.Context, actor *user.User, fs *datafile.FileSource) (*form.Form, *form.Section, error) {
	if err := requirePermission(actor, user.PermDataUpload, "upload data"); err != nil {
		return nil, nil, err
	}
	f, sec, err := s.resolveSection(ctx, fs.FormID, fs.FormSectionID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsPrivileged() && !sec.HasUploader(actor.ID) {
		return nil, nil, fmt.Errorf("%w: user %s is not an uploader of section %s", ErrPermissionDenied, actor.ID, sec.ID)
	}
	return f, sec, nil
}

// AddDataFileSource registers an uploaded file that already sits under the upload root.
// Live uploads of the same section and period are superseded; a confirmed one blocks
// the upload unless actor is privileged.
func (s *DataFileService) AddDataFileSource(ctx context.Context, actor *user.User, fs *datafile.FileSource) error {
	f, sec, err := s.uploadSection(ctx, actor, fs)
	if err != nil {
		return err
	}
	if sec.FileTemplate == nil {
		return fmt.Errorf("%w: file template of section %s", ErrNotFound, sec.ID)
	}
	tmpl := sec.FileTemplate.ParseTemplate
	if err := tmpl.Validate(); err != nil {
		return fmt.Errorf("parse template of section %s: %w", sec.ID, err)
	}

	if fs.ID == uuid.Nil {
		fs.ID = uuid.New()
	}
	if fs.CreatedAt.IsZero() {
		fs.CreatedAt = s.now()
	}
	if fs.Extension == "" {
		fs.Extension = strings.TrimPrefix(filepath.Ext(fs.FileName), ".")
	}
	fs.CreatorID = actor.ID
	fs.FileTemplateID = sec.FileTemplate.ID
	fs.HTMLTemplateID = f.HTMLTemplateID
	fs.IsConfirmed, fs.IsDeleted = false, false

	log := s.logger.WithFields(fs.LogFields()).WithField("actor_id", actor.ID)

	path := filepath.Join(s.opts.UploadRoot, fs.Path)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s (file source %s)", ErrFileMissing, fs.Path, fs.ID)
	}
	format, err := spreadsheet.FormatFromExtension(fs.Extension)
	if err != nil {
		return fmt.Errorf("file source %s: %w", fs.ID, err)
	}

	values, err := s.extract(path, format, tmpl, fs, log)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		log.Warn("No cell values extracted from uploaded file")
	}

	window, err := f.Window(fs.SourceDate, s.opts.Anchor)
	if err != nil {
		return fmt.Errorf("form %s: %w", f.ID, err)
	}

	err = s.inTx(ctx, log, func(tx datafile.Tx) error {
		existing, err := tx.ListBySection(ctx, fs.FormID, fs.FormSectionID, window)
		if err != nil {
			return fmt.Errorf("error listing uploads of period %s: %w", window, err)
		}
		duplicates := make([]*datafile.FileSource, 0, len(existing))
		for _, d := range existing {
			if d.ID == fs.ID {
				continue
			}
			if d.IsConfirmed && !actor.IsPrivileged() {
				return fmt.Errorf("%w: form %s section %s period %s (file source %s)",
					ErrPeriodAlreadyConfirmed, fs.FormID, fs.FormSectionID, window, d.ID)
			}
			duplicates = append(duplicates, d)
		}

		now := s.now()
		for _, d := range duplicates {
			if err := tx.SoftDelete(ctx, d, actor.ID, now); err != nil {
				return fmt.Errorf("error superseding file source %s: %w", d.ID, err)
			}
			log.WithField("superseded_id", d.ID).Info("Superseded previous upload of the period")
		}

		if err := tx.Insert(ctx, fs); err != nil {
			return fmt.Errorf("error inserting file source %s: %w", fs.ID, err)
		}
		if len(values) > 0 {
			if err := tx.InsertCellValues(ctx, values); err != nil {
				return fmt.Errorf("error inserting %d cell values of file source %s: %w", len(values), fs.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.WithField("cell_count", len(values)).Info("Data file source added")
	return nil
}

func (s *DataFileService) extract(path string, format spreadsheet.Format, tmpl form.ParseTemplate, fs *datafile.FileSource, log *logrus.Entry) ([]*datafile.CellValue, error) {
	wb, err := s.opener.Open(path, format)
	if err != nil {
		return nil, fmt.Errorf("error decoding file source %s: %w", fs.ID, err)
	}
	defer wb.Close()

	newValue := func() *datafile.CellValue {
		return &datafile.CellValue{
			FormID:        fs.FormID,
			FormSectionID: fs.FormSectionID,
			FileSourceID:  fs.ID,
			CreatedAt:     fs.CreatedAt,
		}
	}

	values := make([]*datafile.CellValue, 0)
	for _, sheet := range tmpl.SheetNames() {
		for _, region := range tmpl.Sheets[sheet] {
			begin, end, err := region.Bounds()
			if err != nil {
				return nil, err
			}
			extracted, err := spreadsheet.ExtractRegion(wb, sheet, begin, end, newValue, log)
			if err != nil {
				return nil, fmt.Errorf("file source %s: %w", fs.ID, err)
			}
			values = append(values, extracted...)
		}
	}
	return values, nil
}

// ConfirmPeriod confirms every unconfirmed upload of the form in the period of sourceDate.
// It returns how many uploads were confirmed.
func (s *DataFileService) ConfirmPeriod(ctx context.Context, actor *user.User, formID uuid.UUID, sourceDate time.Time) (int, error) {
	if err := requirePermission(actor, user.PermDataConfirm, "confirm data"); err != nil {
		return 0, err
	}
	f, err := s.resolveForm(ctx, formID)
	if err != nil {
		return 0, err
	}
	return s.confirmForm(ctx, actor, f, sourceDate)
}

// ConfirmAllForms confirms the period of sourceDate on every enabled form. Each form is
// confirmed in its own transaction; failures are collected and do not stop other forms.
func (s *DataFileService) ConfirmAllForms(ctx context.Context, actor *user.User, sourceDate time.Time) (int, error) {
	if err := requirePermission(actor, user.PermDataConfirm, "confirm data"); err != nil {
		return 0, err
	}
	forms, err := s.forms.ListForms(ctx)
	if err != nil {
		return 0, fmt.Errorf("error listing forms: %w", err)
	}

	total := 0
	var errs []error
	for _, f := range forms {
		if !f.Available() {
			continue
		}
		n, err := s.confirmForm(ctx, actor, f, sourceDate)
		if err != nil {
			s.logger.WithFields(f.LogFields()).WithError(err).Error("Failed to confirm form")
			errs = append(errs, fmt.Errorf("form %s: %w", f.ID, err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

func (s *DataFileService) confirmForm(ctx context.Context, actor *user.User, f *form.Form, sourceDate time.Time) (int, error) {
	window, err := f.Window(sourceDate, s.opts.Anchor)
	if err != nil {
		return 0, fmt.Errorf("form %s: %w", f.ID, err)
	}
	log := s.logger.WithFields(f.LogFields()).WithFields(logrus.Fields{
		"actor_id":     actor.ID,
		"period_begin": window.Begin,
		"period_end":   window.End,
	})

	confirmed := 0
	err = s.inTx(ctx, log, func(tx datafile.Tx) error {
		files, err := tx.ListByForm(ctx, f.ID, window)
		if err != nil {
			return fmt.Errorf("error listing uploads of form %s period %s: %w", f.ID, window, err)
		}
		pending := make([]*datafile.FileSource, 0, len(files))
		for _, fs := range files {
			if !fs.IsConfirmed {
				pending = append(pending, fs)
			}
		}
		if len(pending) == 0 {
			log.Info("No unconfirmed uploads in period, nothing to confirm")
			return nil
		}

		now := s.now()
		templateID := f.HTMLTemplateID
		if s.opts.CopyTemplateOnConfirm {
			tmpl, err := tx.GetHTMLTemplate(ctx, f.ID, f.HTMLTemplateID)
			if errors.Is(err, form.ErrTemplateNotFound) {
				return fmt.Errorf("%w: html template %s of form %s", ErrNotFound, f.HTMLTemplateID, f.ID)
			}
			if err != nil {
				return fmt.Errorf("error loading html template of form %s: %w", f.ID, err)
			}
			frozen := tmpl.CopyAs(uuid.New(), actor.ID, now)
			if err := tx.CreateHTMLTemplate(ctx, frozen); err != nil {
				return fmt.Errorf("error copying html template of form %s: %w", f.ID, err)
			}
			templateID = frozen.ID
		}

		for _, fs := range pending {
			if err := tx.MarkConfirmed(ctx, fs, templateID, actor.ID, now); err != nil {
				return fmt.Errorf("error confirming file source %s: %w", fs.ID, err)
			}
		}
		if err := tx.TouchLastConfirmed(ctx, f.ID, sourceDate); err != nil {
			return fmt.Errorf("error updating last confirmed date of form %s: %w", f.ID, err)
		}
		confirmed = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if confirmed > 0 {
		log.WithField("confirmed_count", confirmed).Info("Period confirmed")
	}
	return confirmed, nil
}

// CancelConfirmation returns every upload of the form in the period of sourceDate to unconfirmed.
func (s *DataFileService) CancelConfirmation(ctx context.Context, actor *user.User, formID uuid.UUID, sourceDate time.Time) (int, error) {
	if err := requirePermission(actor, user.PermDataConfirm, "cancel confirmations"); err != nil {
		return 0, err
	}
	f, err := s.resolveForm(ctx, formID)
	if err != nil {
		return 0, err
	}
	window, err := f.Window(sourceDate, s.opts.Anchor)
	if err != nil {
		return 0, fmt.Errorf("form %s: %w", f.ID, err)
	}
	log := s.logger.WithFields(f.LogFields()).WithFields(logrus.Fields{
		"actor_id":     actor.ID,
		"period_begin": window.Begin,
		"period_end":   window.End,
	})

	cancelled := 0
	err = s.inTx(ctx, log, func(tx datafile.Tx) error {
		files, err := tx.ListByForm(ctx, f.ID, window)
		if err != nil {
			return fmt.Errorf("error listing uploads of form %s period %s: %w", f.ID, window, err)
		}
		if len(files) == 0 {
			log.Warn("No uploads in period, nothing to cancel")
			return nil
		}
		for _, fs := range files {
			if err := tx.MarkUnconfirmed(ctx, fs); err != nil {
				return fmt.Errorf("error cancelling confirmation of file source %s: %w", fs.ID, err)
			}
		}
		cancelled = len(files)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if cancelled > 0 {
		log.WithField("cancelled_count", cancelled).Info("Period confirmation cancelled")
	}
	return cancelled, nil
}

// DeleteDataFileSource soft-deletes one upload regardless of its confirmation.
// Users below administrator may only delete their own uploads.
func (s *DataFileService) DeleteDataFileSource(ctx context.Context, actor *user.User, formID, sectionID, fileSourceID uuid.UUID) error {
	if err := requirePermission(actor, user.PermDataDelete, "delete data"); err != nil {
		return err
	}
	fs, err := s.files.GetFileSource(ctx, formID, sectionID, fileSourceID)
	if errors.Is(err, datafile.ErrFileSourceNotFound) {
		return fmt.Errorf("%w: file source %s (form %s section %s)", ErrNotFound, fileSourceID, formID, sectionID)
	}
	if err != nil {
		return fmt.Errorf("error loading file source %s: %w", fileSourceID, err)
	}
	if fs.IsDeleted {
		return fmt.Errorf("%w: file source %s is already deleted", ErrInvalidState, fs.ID)
	}
	if !actor.IsPrivileged() && fs.CreatorID != actor.ID {
		return fmt.Errorf("%w: user %s may not delete file source %s", ErrPermissionDenied, actor.ID, fs.ID)
	}

	log := s.logger.WithFields(fs.LogFields()).WithField("actor_id", actor.ID)
	err = s.inTx(ctx, log, func(tx datafile.Tx) error {
		return tx.SoftDelete(ctx, fs, actor.ID, s.now())
	})
	if err != nil {
		return err
	}
	log.Info("Data file source deleted")
	return nil
}

// GetCellValues groups stored cells by section script variable, sheet and location.
// Each group carries the upload its first cell came from.
func (s *DataFileService) GetCellValues(ctx context.Context, q datafile.CellValueQuery) (map[string]*datafile.CellValues, error) {
	rows, err := s.files.ListCellValues(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("error listing cell values of form %s period %s: %w", q.FormID, q.Range, err)
	}

	result := make(map[string]*datafile.CellValues)
	for _, row := range rows {
		group, ok := result[row.ScriptVariable]
		if !ok {
			src, err := s.files.GetFileSource(ctx, row.FormID, row.FormSectionID, row.FileSourceID)
			if err != nil {
				return nil, fmt.Errorf("error loading file source %s: %w", row.FileSourceID, err)
			}
			group = datafile.NewCellValues(src)
			result[row.ScriptVariable] = group
		}
		value := row.CellValue
		group.Add(&value)
	}
	return result, nil
}

// GetFormData collects what actor may see of the form for the period containing date,
// with the HTML template the data was confirmed against.
func (s *DataFileService) GetFormData(ctx context.Context, actor *user.User, formID uuid.UUID, date time.Time) (*FormData, error) {
	if actor == nil {
		return nil, fmt.Errorf("%w: anonymous user may not view data", ErrPermissionDenied)
	}
	f, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if f.IsDeleted {
		return nil, fmt.Errorf("%w: form %s is deleted", ErrInvalidState, f.ID)
	}
	rng, err := f.Window(date, s.opts.Anchor)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", f.ID, err)
	}

	q := datafile.CellValueQuery{
		FormID:        f.ID,
		Range:         rng,
		OnlyConfirmed: !actor.HasPermission(user.PermDataConfirm),
		RequesterID:   actor.ID,
	}
	if !actor.HasPermission(user.PermDataReview) {
		q.RestrictToUserID = actor.ID
	}
	values, err := s.GetCellValues(ctx, q)
	if err != nil {
		return nil, err
	}

	data := &FormData{
		Form:   f,
		Window: period.Window{DateRange: rng, Year: date.Year(), Month: date.Month(), SourceDate: date, Interval: f.Interval, IsCurrent: true},
		Values: values,
	}
	if f.Interval == period.IntervalWeekly {
		data.Window = period.WeekWindowContaining(date, s.opts.Anchor)
	}

	templateID := f.HTMLTemplateID
	if first := firstGroup(values); first != nil && first.Source != nil && first.Source.HTMLTemplateID != uuid.Nil {
		templateID = first.Source.HTMLTemplateID
	}
	tmpl, err := s.forms.GetHTMLTemplate(ctx, f.ID, templateID)
	switch {
	case errors.Is(err, form.ErrTemplateNotFound):
		s.logger.WithFields(f.LogFields()).WithField("html_template_id", templateID).Warn("HTML template not found")
	case err != nil:
		return nil, fmt.Errorf("error loading html template %s: %w", templateID, err)
	default:
		data.HTMLTemplate = tmpl
	}
	return data, nil
}

// PeriodStatus lists the live uploads of the form in the period containing date.
func (s *DataFileService) PeriodStatus(ctx context.Context, formID uuid.UUID, date time.Time) (*PeriodFiles, error) {
	f, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	rng, err := f.Window(date, s.opts.Anchor)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", f.ID, err)
	}
	files, err := s.files.ListByForm(ctx, f.ID, rng)
	if err != nil {
		return nil, fmt.Errorf("error listing uploads of form %s period %s: %w", f.ID, rng, err)
	}
	return &PeriodFiles{Form: f, Range: rng, Files: files}, nil
}

// firstGroup picks the group of the alphabetically first script variable.
func firstGroup(values map[string]*datafile.CellValues) *datafile.CellValues {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return values[keys[0]]
}

func requirePermission(actor *user.User, p user.Permission, action string) error {
	if actor == nil {
		return fmt.Errorf("%w: anonymous user may not %s", ErrPermissionDenied, action)
	}
	if !actor.HasPermission(p) {
		return fmt.Errorf("%w: user %s may not %s", ErrPermissionDenied, actor.ID, action)
	}
	return nil
}

// inTx runs fn in a transaction. A failed rollback is reported as a RollbackError
// carrying the original failure.
func (s *DataFileService) inTx(ctx context.Context, log *logrus.Entry, fn func(tx datafile.Tx) error) error {
	tx, err := s.files.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrTransactionFailure, err)
	}
	if err := fn(tx); err != nil {
		return s.rollback(tx, err, log)
	}
	if err := tx.Commit(); err != nil {
		return s.rollback(tx, fmt.Errorf("%w: commit: %v", ErrTransactionFailure, err), log)
	}
	return nil
}

func (s *DataFileService) rollback(tx datafile.Tx, cause error, log *logrus.Entry) error {
	if err := tx.Rollback(); err != nil {
		log.WithError(cause).Error("Rollback failed after error")
		return &RollbackError{Cause: cause, Rollback: err}
	}
	return cause
}

func (s *DataFileService) loadForm(ctx context.Context, formID uuid.UUID) (*form.Form, error) {
	f, err := s.forms.GetForm(ctx, formID)
	if errors.Is(err, form.ErrFormNotFound) {
		return nil, fmt.Errorf("%w: form %s", ErrNotFound, formID)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading form %s: %w", formID, err)
	}
	return f, nil
}

func (s *DataFileService) resolveForm(ctx context.Context, formID uuid.UUID) (*form.Form, error) {
	f, err := s.loadForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !f.Available() {
		return nil, fmt.Errorf("%w: form %s is disabled or deleted", ErrInvalidState, f.ID)
	}
	return f, nil
}

func (s *DataFileService) resolveSection(ctx context.Context, formID, sectionID uuid.UUID) (*form.Form, *form.Section, error) {
	f, err := s.resolveForm(ctx, formID)
	if err != nil {
		return nil, nil, err
	}
	sec, err := s.forms.GetSection(ctx, formID, sectionID)
	if errors.Is(err, form.ErrSectionNotFound) {
		return nil, nil, fmt.Errorf("%w: section %s of form %s", ErrNotFound, sectionID, formID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error loading section %s: %w", sectionID, err)
	}
	if !sec.Available() {
		return nil, nil, fmt.Errorf("%w: section %s of form %s is disabled or deleted", ErrInvalidState, sec.ID, formID)
	}
	return f, sec, nil
}
