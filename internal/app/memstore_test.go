package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dashboard_report_bot/internal/domain/datafile"
	"dashboard_report_bot/internal/domain/form"
	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/domain/user"

	"github.com/google/uuid"
)

// memStore is an in-memory form, file and user store. Transactions work on a copy
// that replaces the committed state on Commit.
type memStore struct {
	mu            sync.Mutex
	forms         map[uuid.UUID]*form.Form
	sections      map[uuid.UUID]*form.Section
	templates     map[uuid.UUID]*form.HTMLTemplate
	users         map[string]*user.User
	files         map[uuid.UUID]*datafile.FileSource
	values        []*datafile.CellValue
	lastConfirmed map[uuid.UUID]time.Time
	writes        int

	failInsertValues error
	failCommit       error
	failRollback     error
	// failMarkConfirmed and failMarkUnconfirmed are returned by the failMarkAt-th
	// mark of a transaction (1-based).
	failMarkConfirmed   error
	failMarkUnconfirmed error
	failMarkAt          int
}

func newMemStore() *memStore {
	return &memStore{
		forms:         map[uuid.UUID]*form.Form{},
		sections:      map[uuid.UUID]*form.Section{},
		templates:     map[uuid.UUID]*form.HTMLTemplate{},
		users:         map[string]*user.User{},
		files:         map[uuid.UUID]*datafile.FileSource{},
		lastConfirmed: map[uuid.UUID]time.Time{},
	}
}

func (s *memStore) CreateForm(_ context.Context, f *form.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.forms[f.ID] = &cp
	return nil
}

func (s *memStore) GetForm(_ context.Context, id uuid.UUID) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, form.ErrFormNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memStore) ListForms(_ context.Context) ([]*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*form.Form, 0, len(s.forms))
	for _, f := range s.forms {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) CreateSection(_ context.Context, sec *form.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sec
	cp.Uploaders = nil
	s.sections[sec.ID] = &cp
	return nil
}

func (s *memStore) GetSection(_ context.Context, formID, sectionID uuid.UUID) (*form.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[sectionID]
	if !ok || sec.FormID != formID {
		return nil, form.ErrSectionNotFound
	}
	cp := *sec
	cp.Uploaders = append([]string(nil), sec.Uploaders...)
	return &cp, nil
}

func (s *memStore) ListSections(ctx context.Context, formID uuid.UUID) ([]*form.Section, error) {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0)
	for id, sec := range s.sections {
		if sec.FormID == formID {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()
	out := make([]*form.Section, 0, len(ids))
	for _, id := range ids {
		sec, _ := s.GetSection(ctx, formID, id)
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) AddUploader(_ context.Context, formID, sectionID uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[sectionID]
	if !ok || sec.FormID != formID {
		return form.ErrSectionNotFound
	}
	sec.Uploaders = append(sec.Uploaders, userID)
	return nil
}

func (s *memStore) CreateFileTemplate(_ context.Context, t *form.FileTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[t.SectionID]
	if !ok {
		return form.ErrSectionNotFound
	}
	cp := *t
	sec.FileTemplate = &cp
	sec.FileTemplateID = t.ID
	return nil
}

func (s *memStore) CreateHTMLTemplate(_ context.Context, t *form.HTMLTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

func (s *memStore) GetHTMLTemplate(_ context.Context, formID, templateID uuid.UUID) (*form.HTMLTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[templateID]
	if !ok || t.FormID != formID {
		return nil, form.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) Create(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return user.ErrDuplicateUser
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetByTelegramID(_ context.Context, telegramID int64) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.TelegramID.Valid && u.TelegramID.Int64 == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (s *memStore) Update(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return user.ErrUserNotFound
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStore) ListAll(_ context.Context) ([]*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Begin(_ context.Context) (datafile.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{
		store:         s,
		files:         make(map[uuid.UUID]*datafile.FileSource, len(s.files)),
		values:        append([]*datafile.CellValue(nil), s.values...),
		templates:     make(map[uuid.UUID]*form.HTMLTemplate, len(s.templates)),
		lastConfirmed: make(map[uuid.UUID]time.Time, len(s.lastConfirmed)),
	}
	for id, fs := range s.files {
		cp := *fs
		tx.files[id] = &cp
	}
	for id, t := range s.templates {
		tx.templates[id] = t
	}
	for id, d := range s.lastConfirmed {
		tx.lastConfirmed[id] = d
	}
	return tx, nil
}

func (s *memStore) GetFileSource(_ context.Context, formID, sectionID, fileSourceID uuid.UUID) (*datafile.FileSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs, ok := s.files[fileSourceID]
	if !ok || fs.FormID != formID || fs.FormSectionID != sectionID {
		return nil, datafile.ErrFileSourceNotFound
	}
	cp := *fs
	return &cp, nil
}

func (s *memStore) ListByForm(_ context.Context, formID uuid.UUID, r period.DateRange) ([]*datafile.FileSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selectFiles(s.files, formID, uuid.Nil, r), nil
}

func (s *memStore) ListCellValues(_ context.Context, q datafile.CellValueQuery) ([]*datafile.StoredCellValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*datafile.StoredCellValue, 0)
	for _, v := range s.values {
		fs := s.files[v.FileSourceID]
		sec := s.sections[v.FormSectionID]
		if v.FormID != q.FormID || fs == nil || sec == nil || fs.IsDeleted || !q.Range.Contains(fs.SourceDate) {
			continue
		}
		if q.OnlyConfirmed && !fs.IsConfirmed && fs.CreatorID != q.RequesterID {
			continue
		}
		if q.RestrictToUserID != "" && !sec.HasUploader(q.RestrictToUserID) {
			continue
		}
		out = append(out, &datafile.StoredCellValue{ScriptVariable: sec.ScriptVariable, CellValue: *v})
	}
	return out, nil
}

func (s *memStore) liveFiles(formID, sectionID uuid.UUID) []*datafile.FileSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*datafile.FileSource, 0)
	for _, fs := range s.files {
		if fs.FormID == formID && fs.FormSectionID == sectionID && !fs.IsDeleted {
			cp := *fs
			out = append(out, &cp)
		}
	}
	return out
}

func (s *memStore) valuesOf(fileSourceID uuid.UUID) []*datafile.CellValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*datafile.CellValue, 0)
	for _, v := range s.values {
		if v.FileSourceID == fileSourceID {
			out = append(out, v)
		}
	}
	return out
}

func selectFiles(files map[uuid.UUID]*datafile.FileSource, formID, sectionID uuid.UUID, r period.DateRange) []*datafile.FileSource {
	out := make([]*datafile.FileSource, 0)
	for _, fs := range files {
		if fs.FormID != formID || fs.IsDeleted || !r.Contains(fs.SourceDate) {
			continue
		}
		if sectionID != uuid.Nil && fs.FormSectionID != sectionID {
			continue
		}
		cp := *fs
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memTx struct {
	store         *memStore
	files         map[uuid.UUID]*datafile.FileSource
	values        []*datafile.CellValue
	templates     map[uuid.UUID]*form.HTMLTemplate
	lastConfirmed map[uuid.UUID]time.Time
	writes        int
	marks         int
}

func (tx *memTx) markFails(fail error) error {
	tx.marks++
	if fail != nil && tx.marks == tx.store.failMarkAt {
		return fail
	}
	return nil
}

func (tx *memTx) ListBySection(_ context.Context, formID, sectionID uuid.UUID, r period.DateRange) ([]*datafile.FileSource, error) {
	return selectFiles(tx.files, formID, sectionID, r), nil
}

func (tx *memTx) ListByForm(_ context.Context, formID uuid.UUID, r period.DateRange) ([]*datafile.FileSource, error) {
	return selectFiles(tx.files, formID, uuid.Nil, r), nil
}

func (tx *memTx) Insert(_ context.Context, fs *datafile.FileSource) error {
	cp := *fs
	tx.files[fs.ID] = &cp
	tx.writes++
	return nil
}

func (tx *memTx) InsertCellValues(_ context.Context, values []*datafile.CellValue) error {
	if tx.store.failInsertValues != nil {
		return tx.store.failInsertValues
	}
	tx.values = append(tx.values, values...)
	tx.writes++
	return nil
}

func (tx *memTx) file(id uuid.UUID) (*datafile.FileSource, error) {
	fs, ok := tx.files[id]
	if !ok {
		return nil, datafile.ErrFileSourceNotFound
	}
	return fs, nil
}

func (tx *memTx) MarkConfirmed(_ context.Context, target *datafile.FileSource, templateID uuid.UUID, confirmerID string, at time.Time) error {
	if err := tx.markFails(tx.store.failMarkConfirmed); err != nil {
		return err
	}
	fs, err := tx.file(target.ID)
	if err != nil {
		return err
	}
	fs.IsConfirmed = true
	fs.HTMLTemplateID = templateID
	fs.ConfirmerID.String, fs.ConfirmerID.Valid = confirmerID, true
	fs.ConfirmedAt.Time, fs.ConfirmedAt.Valid = at, true
	tx.writes++
	return nil
}

func (tx *memTx) MarkUnconfirmed(_ context.Context, target *datafile.FileSource) error {
	if err := tx.markFails(tx.store.failMarkUnconfirmed); err != nil {
		return err
	}
	fs, err := tx.file(target.ID)
	if err != nil {
		return err
	}
	fs.IsConfirmed = false
	fs.ConfirmerID.Valid = false
	fs.ConfirmedAt.Valid = false
	tx.writes++
	return nil
}

func (tx *memTx) SoftDelete(_ context.Context, target *datafile.FileSource, deleterID string, at time.Time) error {
	fs, err := tx.file(target.ID)
	if err != nil {
		return err
	}
	fs.IsDeleted = true
	fs.DeleterID.String, fs.DeleterID.Valid = deleterID, true
	fs.DeletedAt.Time, fs.DeletedAt.Valid = at, true
	tx.writes++
	return nil
}

func (tx *memTx) GetHTMLTemplate(_ context.Context, formID, templateID uuid.UUID) (*form.HTMLTemplate, error) {
	t, ok := tx.templates[templateID]
	if !ok || t.FormID != formID {
		return nil, form.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (tx *memTx) CreateHTMLTemplate(_ context.Context, t *form.HTMLTemplate) error {
	cp := *t
	tx.templates[t.ID] = &cp
	tx.writes++
	return nil
}

func (tx *memTx) TouchLastConfirmed(_ context.Context, formID uuid.UUID, sourceDate time.Time) error {
	if prev, ok := tx.lastConfirmed[formID]; !ok || sourceDate.After(prev) {
		tx.lastConfirmed[formID] = sourceDate
	}
	tx.writes++
	return nil
}

func (tx *memTx) Commit() error {
	if tx.store.failCommit != nil {
		return tx.store.failCommit
	}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files, s.values, s.templates, s.lastConfirmed = tx.files, tx.values, tx.templates, tx.lastConfirmed
	s.writes += tx.writes
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.store.failRollback != nil {
		return fmt.Errorf("connection lost: %w", tx.store.failRollback)
	}
	return nil
}
