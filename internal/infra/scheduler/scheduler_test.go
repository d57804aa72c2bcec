package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"dashboard_report_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConfirmer struct {
	actor *user.User
	date  time.Time
	err   error
}

func (c *recordingConfirmer) ConfirmAllForms(_ context.Context, actor *user.User, sourceDate time.Time) (int, error) {
	c.actor, c.date = actor, sourceDate
	return 2, c.err
}

type recordingReminders struct {
	date time.Time
}

func (r *recordingReminders) SendUploadReminders(_ context.Context, date time.Time) (int, error) {
	r.date = date
	return 1, nil
}

func newTestScheduler(confirmer Confirmer, reminders *recordingReminders, enabled bool, spec string) (*DashboardScheduler, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	s := NewDashboardScheduler(confirmer, reminders, logrus.NewEntry(logger), enabled, spec, "0 10 * * *")
	s.now = func() time.Time { return time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC) }
	return s, hook
}

func TestAutoConfirmUsesYesterdayAsSystem(t *testing.T) {
	confirmer := &recordingConfirmer{}
	s, _ := newTestScheduler(confirmer, &recordingReminders{}, true, "0 3 * * *")

	s.runAutoConfirm()

	require.NotNil(t, confirmer.actor)
	assert.Equal(t, user.GroupSystem, confirmer.actor.Group)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), confirmer.date)
}

func TestAutoConfirmLogsFailures(t *testing.T) {
	confirmer := &recordingConfirmer{err: errors.New("form f1: boom")}
	s, hook := newTestScheduler(confirmer, &recordingReminders{}, true, "0 3 * * *")

	s.runAutoConfirm()

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestRunRemindersPassesCurrentTime(t *testing.T) {
	reminders := &recordingReminders{}
	s, _ := newTestScheduler(&recordingConfirmer{}, reminders, false, "")

	s.runReminders()
	assert.Equal(t, time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), reminders.date)
}

func TestStartRegistersJobs(t *testing.T) {
	s, _ := newTestScheduler(&recordingConfirmer{}, &recordingReminders{}, true, "0 3 * * *")
	require.NoError(t, s.Start())
	assert.Len(t, s.cronEngine.Entries(), 2)
	s.Stop()

	disabled, _ := newTestScheduler(&recordingConfirmer{}, &recordingReminders{}, false, "not a spec")
	require.NoError(t, disabled.Start())
	assert.Len(t, disabled.cronEngine.Entries(), 1)
	disabled.Stop()

	bad, _ := newTestScheduler(&recordingConfirmer{}, &recordingReminders{}, true, "not a spec")
	assert.Error(t, bad.Start())
}
