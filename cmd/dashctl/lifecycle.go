package main

import (
	"fmt"
	"os"
	"path/filepath"

	"dashboard_report_bot/internal/domain/datafile"
	"dashboard_report_bot/internal/infra/manifest"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", s.cfg.DatabaseDriver)
			return nil
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Provision users and forms from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			actor, err := opts.actor(cmd.Context(), s)
			if err != nil {
				return err
			}

			res, err := manifest.Apply(cmd.Context(), s.admin, actor, m, s.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d created, %d skipped\nforms: %d created, %d skipped\nsections: %d created\n",
				res.UsersCreated, res.UsersSkipped, res.FormsCreated, res.FormsSkipped, res.SectionsCreated)
			return nil
		},
	}
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var formID, sectionID, date, comment string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a spreadsheet for a form section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fid, err := uuid.Parse(formID)
			if err != nil {
				return fmt.Errorf("invalid --form: %w", err)
			}
			sid, err := uuid.Parse(sectionID)
			if err != nil {
				return fmt.Errorf("invalid --section: %w", err)
			}
			sourceDate, err := parseDate(date)
			if err != nil {
				return err
			}

			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			actor, err := opts.actor(cmd.Context(), s)
			if err != nil {
				return err
			}

			fs := &datafile.FileSource{
				FormID:        fid,
				FormSectionID: sid,
				FileName:      filepath.Base(args[0]),
				Comment:       comment,
				SourceDate:    sourceDate,
			}
			if err := s.files.AddDataFileSourceFromReader(cmd.Context(), actor, fs, in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s as %s\n", fs.FileName, fs.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "form id")
	cmd.Flags().StringVar(&sectionID, "section", "", "section id")
	cmd.Flags().StringVar(&date, "date", "", "source date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&comment, "comment", "", "upload comment")
	_ = cmd.MarkFlagRequired("form")
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

func newConfirmCmd(opts *rootOptions) *cobra.Command {
	var formID, date string
	var all bool

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm the uploads of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == (formID != "") {
				return fmt.Errorf("pass either --form or --all")
			}
			sourceDate, err := parseDate(date)
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			actor, err := opts.actor(cmd.Context(), s)
			if err != nil {
				return err
			}

			var n int
			if all {
				n, err = s.files.ConfirmAllForms(cmd.Context(), actor, sourceDate)
			} else {
				var fid uuid.UUID
				if fid, err = uuid.Parse(formID); err != nil {
					return fmt.Errorf("invalid --form: %w", err)
				}
				n, err = s.files.ConfirmPeriod(cmd.Context(), actor, fid, sourceDate)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmed %d file(s)\n", n)
			return err
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "form id")
	cmd.Flags().BoolVar(&all, "all", false, "confirm every enabled form")
	cmd.Flags().StringVar(&date, "date", "", "date inside the period (YYYY-MM-DD, default today)")
	return cmd
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	var formID, date string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the confirmation of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fid, err := uuid.Parse(formID)
			if err != nil {
				return fmt.Errorf("invalid --form: %w", err)
			}
			sourceDate, err := parseDate(date)
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			actor, err := opts.actor(cmd.Context(), s)
			if err != nil {
				return err
			}

			n, err := s.files.CancelConfirmation(cmd.Context(), actor, fid, sourceDate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unconfirmed %d file(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "form id")
	cmd.Flags().StringVar(&date, "date", "", "date inside the period (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var formID, sectionID, fileID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Soft-delete an uploaded file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids := make([]uuid.UUID, 3)
			for i, raw := range []string{formID, sectionID, fileID} {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid id %q: %w", raw, err)
				}
				ids[i] = id
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			actor, err := opts.actor(cmd.Context(), s)
			if err != nil {
				return err
			}

			if err := s.files.DeleteDataFileSource(cmd.Context(), actor, ids[0], ids[1], ids[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", ids[2])
			return nil
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "form id")
	cmd.Flags().StringVar(&sectionID, "section", "", "section id")
	cmd.Flags().StringVar(&fileID, "file", "", "file source id")
	_ = cmd.MarkFlagRequired("form")
	_ = cmd.MarkFlagRequired("section")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
