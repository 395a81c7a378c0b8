package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"example.com/wellness/internal/catalog"
	"example.com/wellness/internal/config"
	"example.com/wellness/internal/cooldown"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence/local"
	"example.com/wellness/internal/persistence/postgres"
	"example.com/wellness/internal/persistence/supabase"
	"example.com/wellness/internal/stats"
)

func newStatsCmd(cfg config.Config) *cobra.Command {
	var (
		user   string
		device string
		period string
		tz     string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print activity statistics for a user or a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (user == "") == (device == "") {
				return errors.New("exactly one of --user or --device is required")
			}
			p, err := stats.ParsePeriod(period)
			if err != nil {
				return err
			}
			if tz == "" {
				tz = cfg.DefaultTimezone
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("time zone %q: %w", tz, err)
			}

			ctx := cmd.Context()
			defaults, err := catalog.Defaults()
			if err != nil {
				return err
			}

			kv, err := local.Open(cfg.LocalStorePath)
			if err != nil {
				return err
			}
			defer kv.Close()

			var remote domain.RemoteStore
			if user != "" {
				switch cfg.RemoteBackend {
				case config.BackendPostgres:
					pool, err := openPool(ctx, cfg)
					if err != nil {
						return err
					}
					defer pool.Close()
					remote = postgres.NewRepository(pool, "")
				case config.BackendSupabase:
					client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
					if err != nil {
						return err
					}
					remote = supabase.NewRepository(client)
				default:
					return fmt.Errorf("--user needs the postgres or supabase backend, not %q", cfg.RemoteBackend)
				}
			}

			svc := domain.NewActivityService(remote, domain.NewOfflineStore(kv), cooldown.NewTracker(cfg.CooldownWindow), defaults)
			principal := domain.Principal{UserID: user, DeviceID: device}
			records, err := svc.List(ctx, principal, domain.ActivityFilter{})
			if err != nil {
				return err
			}
			defs, err := svc.Definitions(ctx, principal)
			if err != nil {
				return err
			}

			report := stats.Aggregate(records, p, time.Now().In(loc), defs...)
			return renderReport(cmd.OutOrStdout(), report, defs)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "authenticated user id (remote store)")
	cmd.Flags().StringVar(&device, "device", "", "anonymous device id (local store)")
	cmd.Flags().StringVar(&period, "period", "daily", "daily, weekly, monthly or yearly")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone; defaults to DEFAULT_TIMEZONE")
	return cmd
}

func renderReport(w io.Writer, report stats.Report, defs []domain.ActivityDefinition) error {
	fmt.Fprintf(w, "Period: %s (since %s)\n", report.Period, report.WindowStart.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "Total: %d\n\n", report.Total)

	emoji := make(map[string]string, len(defs))
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		emoji[def.Name] = def.Emoji
		names = append(names, def.Name)
	}
	for _, tc := range report.ByType {
		if _, ok := emoji[tc.Name]; !ok {
			emoji[tc.Name] = tc.Emoji
			names = append(names, tc.Name)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVITY\tSTAT")
	for _, name := range names {
		fmt.Fprintf(tw, "%s %s\t%s\n", emoji[name], name, report.TypeStat(name))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	days := make([]string, 0, len(stats.DayNames))
	for i, day := range stats.DayNames {
		days = append(days, fmt.Sprintf("%s %d", day, report.ByDayOfWeek[i]))
	}
	fmt.Fprintf(w, "\nBy day: %s\n", strings.Join(days, ", "))

	busiest, count := 0, 0
	for hour, n := range report.ByHourOfDay {
		if n > count {
			busiest, count = hour, n
		}
	}
	if count > 0 {
		fmt.Fprintf(w, "Busiest hour: %02d:00 (%d)\n", busiest, count)
	}
	return nil
}
