package main

import (
	"fmt"
	"sort"

	"dashboard_report_bot/internal/app"
	"dashboard_report_bot/internal/domain/period"
	"dashboard_report_bot/internal/infra/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPeriodsCmd(opts *rootOptions) *cobra.Command {
	var date, anchor string
	var previous, month bool

	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Print the period windows around a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := parseDate(date)
			if err != nil {
				return err
			}
			wd := config.DefaultWeekAnchor
			if anchor != "" {
				if wd, err = period.ParseWeekday(anchor); err != nil {
					return err
				}
			}

			windows := period.WindowsWithPrevious(d, previous, wd)
			if month {
				windows = period.WeekWindowsOfMonth(d, wd)
			}
			out := cmd.OutOrStdout()
			for _, w := range windows {
				label := "previous"
				if w.IsCurrent {
					label = "current"
				}
				if w.Interval == period.IntervalWeekly {
					fmt.Fprintf(out, "%-8s %-23s %d-%02d week %d %s\n", w.Interval, w.DateRange, w.Year, w.Month, w.Week, label)
					continue
				}
				fmt.Fprintf(out, "%-8s %-23s %s\n", w.Interval, w.DateRange, label)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&anchor, "anchor", "", "weekday that decides week ownership (default wednesday)")
	cmd.Flags().BoolVar(&previous, "previous", false, "also print the preceding windows")
	cmd.Flags().BoolVar(&month, "month", false, "print every week window of the month instead")
	return cmd
}

type formDataView struct {
	Form     string                 `yaml:"form"`
	Interval period.Interval        `yaml:"interval"`
	Period   string                 `yaml:"period"`
	Week     int                    `yaml:"week,omitempty"`
	Template string                 `yaml:"html_template,omitempty"`
	Sections map[string]sectionView `yaml:"sections"`
}

type sectionView struct {
	File      string                    `yaml:"file"`
	Confirmed bool                      `yaml:"confirmed"`
	Sheets    map[string]map[string]any `yaml:"sheets"`
}

func newFormDataView(data *app.FormData) formDataView {
	view := formDataView{
		Form:     data.Form.Name,
		Interval: data.Form.Interval,
		Period:   data.Window.DateRange.String(),
		Week:     data.Window.Week,
		Sections: make(map[string]sectionView, len(data.Values)),
	}
	if data.HTMLTemplate != nil {
		view.Template = data.HTMLTemplate.ID.String()
	}
	for variable, group := range data.Values {
		sv := sectionView{Sheets: make(map[string]map[string]any, len(group.Sheets))}
		if group.Source != nil {
			sv.File, sv.Confirmed = group.Source.FileName, group.Source.IsConfirmed
		}
		for sheet, cells := range group.Sheets {
			values := make(map[string]any, len(cells))
			for loc, cell := range cells {
				values[loc] = cell.Value
			}
			sv.Sheets[sheet] = values
		}
		view.Sections[variable] = sv
	}
	return view
}

func newDataCmd(opts *rootOptions) *cobra.Command {
	var formID, date string

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Print the dashboard data of a form period as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fid, err := uuid.Parse(formID)
			if err != nil {
				return fmt.Errorf("invalid --form: %w", err)
			}
			d, err := parseDate(date)
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

			data, err := s.files.GetFormData(cmd.Context(), actor, fid, d)
			if err != nil {
				return err
			}
			status, err := s.files.PeriodStatus(cmd.Context(), fid, d)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(newFormDataView(data)); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}

			names := make([]string, 0, len(status.Files))
			for _, fs := range status.Files {
				names = append(names, fmt.Sprintf("%s/%s %s", fs.FormSectionName, fs.FileName, fs.ID))
			}
			sort.Strings(names)
			fmt.Fprintf(cmd.OutOrStdout(), "# %d live upload(s) in period\n", len(names))
			for _, n := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "#   %s\n", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "form id")
	cmd.Flags().StringVar(&date, "date", "", "date inside the period (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}
