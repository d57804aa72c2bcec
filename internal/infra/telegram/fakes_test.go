package telegram

import (
	"context"
	"fmt"
	"io"
	"time"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/datafile"
	"dashboard_report_bot/internal/domain/form"
	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/domain/user"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// fakeContext overrides the parts of telebot.Context the handlers use.
type fakeContext struct {
	telebot.Context

	sender   *telebot.User
	args     []string
	message  *telebot.Message
	callback *telebot.Callback

	sent      []string
	sentOpts  [][]interface{}
	responses []*telebot.CallbackResponse
}

func newContext(senderID int64, args ...string) *fakeContext {
	return &fakeContext{
		sender:  &telebot.User{ID: senderID, FirstName: "Ivan"},
		args:    args,
		message: &telebot.Message{},
	}
}

func (c *fakeContext) Sender() *telebot.User { return c.sender }
func (c *fakeContext) Args() []string { return c.args }
func (c *fakeContext) Message() *telebot.Message { return c.message }
func (c *fakeContext) Callback() *telebot.Callback { return c.callback }

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, fmt.Sprint(what))
	c.sentOpts = append(c.sentOpts, opts)
	return nil
}

func (c *fakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	c.responses = append(c.responses, resp...)
	return nil
}

func (c *fakeContext) lastSent() string {
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

type fakeUsers struct {
	byTelegram map[int64]*user.User
	added      []*user.User
	removed    []string
	err        error
}

func newFakeUsers(users ...*user.User) *fakeUsers {
	f := &fakeUsers{byTelegram: make(map[int64]*user.User)}
	for _, u := range users {
		f.byTelegram[u.TelegramID.Int64] = u
	}
	return f
}

func (f *fakeUsers) ResolveTelegramUser(_ context.Context, telegramID int64) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byTelegram[telegramID]
	if !ok {
		return nil, fmt.Errorf("%w: telegram user %d", app.ErrNotFound, telegramID)
	}
	return u, nil
}

func (f *fakeUsers) AddUser(_ context.Context, actor *user.User, u *user.User) error {
	if !actor.IsPrivileged() {
		return app.ErrAdminNotAuthorized
	}
	for _, existing := range f.byTelegram {
		if existing.ID == u.ID {
			return app.ErrUserAlreadyExists
		}
	}
	f.added = append(f.added, u)
	return nil
}

func (f *fakeUsers) RemoveUser(_ context.Context, _ *user.User, id string) (*user.User, error) {
	for _, u := range f.byTelegram {
		if u.ID != id {
			continue
		}
		if u.IsDeleted {
			return u, app.ErrUserAlreadyInactive
		}
		f.removed = append(f.removed, id)
		return u, nil
	}
	return nil, fmt.Errorf("%w: user %s", app.ErrNotFound, id)
}

func (f *fakeUsers) ListUsers(_ context.Context, _ *user.User) ([]*user.User, error) {
	list := make([]*user.User, 0, len(f.byTelegram))
	for _, u := range f.byTelegram {
		list = append(list, u)
	}
	return list, nil
}

type periodCall struct {
	formID uuid.UUID
	date   time.Time
	actor  *user.User
}

type fakeFiles struct {
	uploaded []*datafile.FileSource
	bodies   []string
	confirms []periodCall
	cancels  []periodCall
	deletes  [][3]uuid.UUID

	status *app.PeriodFiles
	count  int
	err    error
}

func (f *fakeFiles) AddDataFileSourceFromReader(_ context.Context, _ *user.User, fs *datafile.FileSource, r io.Reader) error {
	if f.err != nil {
		return f.err
	}
	body, _ := io.ReadAll(r)
	fs.ID = uuid.New()
	f.uploaded = append(f.uploaded, fs)
	f.bodies = append(f.bodies, string(body))
	return nil
}

func (f *fakeFiles) ConfirmPeriod(_ context.Context, actor *user.User, formID uuid.UUID, date time.Time) (int, error) {
	f.confirms = append(f.confirms, periodCall{formID: formID, date: date, actor: actor})
	return f.count, f.err
}

func (f *fakeFiles) ConfirmAllForms(_ context.Context, actor *user.User, date time.Time) (int, error) {
	f.confirms = append(f.confirms, periodCall{date: date, actor: actor})
	return f.count, f.err
}

func (f *fakeFiles) CancelConfirmation(_ context.Context, actor *user.User, formID uuid.UUID, date time.Time) (int, error) {
	f.cancels = append(f.cancels, periodCall{formID: formID, date: date, actor: actor})
	return f.count, f.err
}

func (f *fakeFiles) DeleteDataFileSource(_ context.Context, _ *user.User, formID, sectionID, fileSourceID uuid.UUID) error {
	f.deletes = append(f.deletes, [3]uuid.UUID{formID, sectionID, fileSourceID})
	return f.err
}

func (f *fakeFiles) PeriodStatus(_ context.Context, formID uuid.UUID, date time.Time) (*app.PeriodFiles, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.status != nil {
		return f.status, nil
	}
	return &app.PeriodFiles{
		Form:  &form.Form{ID: formID, Name: "sales"},
		Range: period.DateRange{Begin: date, End: date},
	}, nil
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
