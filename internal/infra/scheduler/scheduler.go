package scheduler

import (
	"context"
	"time"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/user"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Confirmer confirms the periods of every enabled form.
type Confirmer interface {
	ConfirmAllForms(ctx context.Context, actor *user.User, sourceDate time.Time) (int, error)
}

type DashboardScheduler struct {
	cronEngine          *cron.Cron
	confirmer           Confirmer
	reminders           app.ReminderService
	logger              *logrus.Entry
	now                 func() time.Time
	autoConfirmEnabled  bool
	cronSpecAutoConfirm string
	cronSpecReminder    string
}

func NewDashboardScheduler(
	confirmer Confirmer,
	reminders app.ReminderService,
	logger *logrus.Entry,
	autoConfirmEnabled bool,
	cronSpecAutoConfirm string, // e.g., "0 3 * * *" (3:00 AM daily)
	cronSpecReminder string, // e.g., "0 10 * * *" (10:00 AM daily)
) *DashboardScheduler {
	return &DashboardScheduler{
		cronEngine:          cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		confirmer:           confirmer,
		reminders:           reminders,
		logger:              logger.WithField("component", "scheduler"),
		now:                 time.Now,
		autoConfirmEnabled:  autoConfirmEnabled,
		cronSpecAutoConfirm: cronSpecAutoConfirm,
		cronSpecReminder:    cronSpecReminder,
	}
}

// Start registers the jobs and starts the cron engine. It fails on an invalid cron spec.
func (s *DashboardScheduler) Start() error {
	s.logger.Info("Starting dashboard scheduler...")

	if s.autoConfirmEnabled {
		if _, err := s.cronEngine.AddFunc(s.cronSpecAutoConfirm, s.runAutoConfirm); err != nil {
			return err
		}
	} else {
		s.logger.Info("Auto-confirmation disabled, skipping job")
	}

	if _, err := s.cronEngine.AddFunc(s.cronSpecReminder, s.runReminders); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithField("jobs", len(s.cronEngine.Entries())).Info("Dashboard scheduler started with jobs.")
	return nil
}

// runAutoConfirm confirms the periods containing yesterday as the system account.
func (s *DashboardScheduler) runAutoConfirm() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	yesterday := s.now().AddDate(0, 0, -1)
	sourceDate := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, yesterday.Location())
	log := s.logger.WithFields(logrus.Fields{"job": "auto_confirm", "source_date": sourceDate.Format("2006-01-02")})
	log.Info("Cron job triggered for auto-confirmation.")

	n, err := s.confirmer.ConfirmAllForms(ctx, user.System(), sourceDate)
	if err != nil {
		log.WithError(err).Error("Auto-confirmation finished with errors")
	}
	log.WithField("confirmed_count", n).Info("Auto-confirmation done")
}

func (s *DashboardScheduler) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	log := s.logger.WithField("job", "upload_reminder")
	log.Info("Cron job triggered for upload reminders.")
	n, err := s.reminders.SendUploadReminders(ctx, s.now())
	if err != nil {
		log.WithError(err).Error("Error during upload reminder processing")
		return
	}
	log.WithField("sent_count", n).Info("Upload reminders sent")
}

func (s *DashboardScheduler) Stop() {
	s.logger.Info("Stopping dashboard scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Dashboard scheduler gracefully stopped.")
}
