package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/clearpath/prevention/internal/config"
	"github.com/clearpath/prevention/internal/domain/appointment"
	"github.com/clearpath/prevention/internal/domain/survey"
	"github.com/clearpath/prevention/internal/platform/auth"
	"github.com/clearpath/prevention/internal/platform/db"
	"github.com/clearpath/prevention/internal/tui/surveyview"
	"github.com/clearpath/prevention/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "prevention-server",
		Short:        "Prevention support API: risk surveys and consultation appointments",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(surveyCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// migrationsFS returns the embedded migrations unless dir points elsewhere.
func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsFS(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsFS(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Cancel expired bookings once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(os.Getenv("ENV"))
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := appointment.NewService(
				appointment.NewScheduleRepoPG(pool),
				appointment.NewAppointmentRepoPG(pool),
				appointment.RoomLinkProvider{BaseURL: cfg.MeetingBaseURL},
				appointmentSettings(cfg),
				logger,
			)
			report, err := svc.ExpireStale(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func surveyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "survey",
		Short: "Manage and take surveys",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Validate a YAML survey definition and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sv, err := survey.LoadDefinitionFile(args[0])
			if err != nil {
				return err
			}
			if slug, _ := cmd.Flags().GetString("slug"); slug != "" {
				sv.Slug = slug
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := survey.NewService(survey.NewSurveyRepoPG(pool), survey.NewSubmissionRepoPG(pool), nil)
			if err := svc.ImportSurvey(ctx, sv); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported survey %q (%s) with %d questions.\n", sv.Slug, sv.ID, len(sv.Questions))
			return nil
		},
	}
	importCmd.Flags().String("slug", "", "Override the slug from the definition file")
	cmd.AddCommand(importCmd)

	takeCmd := &cobra.Command{
		Use:   "take [file.yaml]",
		Short: "Take a survey in the terminal (built-in CRAFFT screening by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sv := survey.CRAFFT()
			if len(args) == 1 {
				var err error
				if sv, err = survey.LoadDefinitionFile(args[0]); err != nil {
					return err
				}
			}
			model := surveyview.New(sv, survey.CRAFFTSkips)
			if stay, _ := cmd.Flags().GetBool("stay"); !stay {
				model = model.ExitOnFinish()
			}
			final, err := tea.NewProgram(model).Run()
			if err != nil {
				return err
			}
			if res, ok := final.(surveyview.Model).Result(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Score %d/%d, risk %s\n", res.Score, res.MaxPossibleScore, res.RiskTier)
			}
			return nil
		},
	}
	takeCmd.Flags().Bool("stay", false, "Keep the result on screen so the survey can be restarted")
	cmd.AddCommand(takeCmd)

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with AUTH_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			roles, _ := cmd.Flags().GetString("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if sub == "" {
				return fmt.Errorf("--sub is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.IssueToken([]byte(cfg.AuthSigningKey), cfg.AuthIssuer, sub, splitRoles(roles), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("sub", "", "Subject (account id)")
	cmd.Flags().String("roles", auth.RoleMember, "Comma-separated roles")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
