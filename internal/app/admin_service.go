package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dashboard_report_bot/internal/domain/form"
	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/domain/user"

	"github.com/google/uuid"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrUserAlreadyExists = fmt.Errorf("user with this id already exists")
var ErrUserAlreadyInactive = fmt.Errorf("user is already inactive")

// AdminService manages users, forms and sections.
type AdminService struct {
	userRepo        user.Repository
	formRepo        form.Repository
	systemAccounts  user.AccountSet
	adminTelegramID int64
	now             func() time.Time
}

func NewAdminService(ur user.Repository, fr form.Repository, systemAccounts user.AccountSet, adminTelegramID int64) *AdminService {
	return &AdminService{
		userRepo:        ur,
		formRepo:        fr,
		systemAccounts:  systemAccounts,
		adminTelegramID: adminTelegramID,
		now:             time.Now,
	}
}

// ResolveUser loads a user and applies system account classification.
func (s *AdminService) ResolveUser(ctx context.Context, id string) (*user.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user.Classify(u, s.systemAccounts), nil
}

// ResolveTelegramUser maps a Telegram sender to a user. The configured admin Telegram
// account is always at least an administrator, even before it is registered.
func (s *AdminService) ResolveTelegramUser(ctx context.Context, telegramID int64) (*user.User, error) {
	u, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		if telegramID != s.adminTelegramID {
			return nil, fmt.Errorf("%w: telegram user %d", ErrNotFound, telegramID)
		}
		u = &user.User{ID: fmt.Sprintf("telegram:%d", telegramID), Group: user.GroupAdministrator}
	case err != nil:
		return nil, fmt.Errorf("failed to get user by Telegram ID %d: %w", telegramID, err)
	}

	u = user.Classify(u, s.systemAccounts)
	if telegramID == s.adminTelegramID && u.Group < user.GroupAdministrator {
		u.Group = user.GroupAdministrator
	}
	return u, nil
}

// AddUser registers a new user.
func (s *AdminService) AddUser(ctx context.Context, actor *user.User, u *user.User) error {
	if !actor.IsPrivileged() {
		return ErrAdminNotAuthorized
	}

	_, err := s.userRepo.GetByID(ctx, u.ID)
	if err == nil {
		return ErrUserAlreadyExists
	}
	if !errors.Is(err, user.ErrUserNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	u.CreatedAt = s.now()
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrDuplicateUser) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user in repository: %w", err)
	}
	return nil
}

// RemoveUser deactivates a user.
func (s *AdminService) RemoveUser(ctx context.Context, actor *user.User, id string) (*user.User, error) {
	if !actor.IsPrivileged() {
		return nil, ErrAdminNotAuthorized
	}

	target, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user %s for removal: %w", id, err)
	}
	if target.IsDeleted {
		return target, ErrUserAlreadyInactive
	}

	target.IsDeleted = true
	if err := s.userRepo.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to update user to inactive in repository: %w", err)
	}
	return target, nil
}

func (s *AdminService) ListUsers(ctx context.Context, actor *user.User) ([]*user.User, error) {
	if !actor.IsPrivileged() {
		return nil, ErrAdminNotAuthorized
	}
	return s.userRepo.ListAll(ctx)
}

// CreateForm stores a form together with its initial HTML template.
func (s *AdminService) CreateForm(ctx context.Context, actor *user.User, f *form.Form, tmpl *form.HTMLTemplate) error {
	if !actor.IsPrivileged() {
		return ErrAdminNotAuthorized
	}
	if _, err := period.ParseInterval(string(f.Interval)); err != nil {
		return fmt.Errorf("form %q: %w", f.Name, err)
	}

	now := s.now()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if tmpl == nil {
		tmpl = &form.HTMLTemplate{}
	}
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	tmpl.FormID, tmpl.CreatorID, tmpl.CreatedAt = f.ID, actor.ID, now
	f.HTMLTemplateID, f.CreatorID, f.CreatedAt = tmpl.ID, actor.ID, now

	if err := s.formRepo.CreateForm(ctx, f); err != nil {
		return fmt.Errorf("failed to create form %q: %w", f.Name, err)
	}
	if err := s.formRepo.CreateHTMLTemplate(ctx, tmpl); err != nil {
		return fmt.Errorf("failed to create html template of form %s: %w", f.ID, err)
	}
	return nil
}

// CreateSection stores a section, its file template and its uploader roster.
func (s *AdminService) CreateSection(ctx context.Context, actor *user.User, sec *form.Section, ft *form.FileTemplate) error {
	if !actor.IsPrivileged() {
		return ErrAdminNotAuthorized
	}
	if ft == nil {
		return fmt.Errorf("section %q: %w", sec.Name, form.ErrEmptyParseTemplate)
	}
	if err := ft.ParseTemplate.Validate(); err != nil {
		return fmt.Errorf("section %q: %w", sec.Name, err)
	}
	if _, err := s.formRepo.GetForm(ctx, sec.FormID); err != nil {
		if errors.Is(err, form.ErrFormNotFound) {
			return fmt.Errorf("%w: form %s", ErrNotFound, sec.FormID)
		}
		return fmt.Errorf("failed to get form %s: %w", sec.FormID, err)
	}

	now := s.now()
	if sec.ID == uuid.Nil {
		sec.ID = uuid.New()
	}
	if ft.ID == uuid.Nil {
		ft.ID = uuid.New()
	}
	ft.FormID, ft.SectionID, ft.CreatorID, ft.CreatedAt = sec.FormID, sec.ID, actor.ID, now
	sec.FileTemplateID, sec.FileTemplate, sec.CreatorID, sec.CreatedAt = ft.ID, ft, actor.ID, now

	if err := s.formRepo.CreateSection(ctx, sec); err != nil {
		return fmt.Errorf("failed to create section %q: %w", sec.Name, err)
	}
	if err := s.formRepo.CreateFileTemplate(ctx, ft); err != nil {
		return fmt.Errorf("failed to create file template of section %s: %w", sec.ID, err)
	}
	for _, uploader := range sec.Uploaders {
		if err := s.formRepo.AddUploader(ctx, sec.FormID, sec.ID, uploader); err != nil {
			return fmt.Errorf("failed to add uploader %s to section %s: %w", uploader, sec.ID, err)
		}
	}
	return nil
}

func (s *AdminService) ListForms(ctx context.Context) ([]*form.Form, error) {
	return s.formRepo.ListForms(ctx)
}
