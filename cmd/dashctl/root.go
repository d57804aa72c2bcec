package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/user"
	"dashboard_report_bot/internal/infra/config"
	idb "dashboard_report_bot/internal/infra/database"
	"dashboard_report_bot/internal/infra/excel"
	"dashboard_report_bot/internal/infra/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

type rootOptions struct {
	out     io.Writer
	actorID string
	verbose bool
}

// newRootCmd builds the dashctl command tree:
//
//	dashctl
//	├── migrate
//	├── import <manifest.yaml>
//	├── upload, confirm, cancel, delete
//	├── periods
//	└── data
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	rootCmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Administer the dashboard report store",
		Long: `dashctl provisions forms and users, drives the upload and confirmation
lifecycle of report files, and prints period windows and dashboard data.

Database and lifecycle settings come from the same environment variables
(or .env file) the bot reads.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&opts.actorID, "as", "system", "user id to act as")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newMigrateCmd(opts),
		newImportCmd(opts),
		newUploadCmd(opts),
		newConfirmCmd(opts),
		newCancelCmd(opts),
		newDeleteCmd(opts),
		newPeriodsCmd(opts),
		newDataCmd(opts),
	)
	return rootCmd
}

// services is the application stack a command runs against.
type services struct {
	cfg    *config.AppConfig
	db     *sql.DB
	admin  *app.AdminService
	files  *app.DataFileService
	logger *logrus.Entry
}

func (o *rootOptions) open(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	logger.Configure(logger.Get(), o.out, cfg.LogLevel, cfg.Environment)
	entry := logrus.NewEntry(logger.Get()).WithField("component", "dashctl")

	db, err := idb.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := idb.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	forms := idb.NewPostgresFormRepository(db)
	return &services{
		cfg:   cfg,
		db:    db,
		admin: app.NewAdminService(idb.NewPostgresUserRepository(db), forms, cfg.SystemAccounts, cfg.AdminTelegramID),
		files: app.NewDataFileService(forms, idb.NewPostgresDataFileRepository(db), excel.NewOpener(), app.DataFileOptions{
			UploadRoot:            cfg.UploadRoot,
			Anchor:                cfg.WeekAnchor,
			CopyTemplateOnConfirm: cfg.CopyTemplateOnConfirm,
		}, entry),
		logger: entry,
	}, nil
}

func (s *services) Close() error {
	return s.db.Close()
}

// actor resolves --as; "system" needs no stored account.
func (o *rootOptions) actor(ctx context.Context, s *services) (*user.User, error) {
	if o.actorID == "" || o.actorID == user.System().ID {
		return user.System(), nil
	}
	return s.admin.ResolveUser(ctx, o.actorID)
}

// parseDate reads YYYY-MM-DD in local time; empty means today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	d, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}
