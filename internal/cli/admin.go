package cli

import (
	"fmt"
	"os"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/export"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewExportCmd writes the user responses table to a file.
func NewExportCmd(configPath *string) *cobra.Command {
	var (
		format string
		out    string
		as     string
		uid    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export users and their responses as CSV or Excel",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			rt, err := loadRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			actor, err := rt.actorFor(as)
			if err != nil {
				return err
			}
			if out == "" {
				out = f.FileNameFor(uid)
			}
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			defer file.Close()
			if err := rt.admin.Export(cmd.Context(), actor, f, app.ExportFilter{UserID: uid}, file); err != nil {
				return err
			}
			rt.log.Info("export written", zap.String("file", out), zap.String("format", string(f)))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (defaults to user_responses.<format>)")
	cmd.Flags().StringVar(&as, "as", "", "admin email to act as (defaults to the first configured admin)")
	cmd.Flags().StringVar(&uid, "uid", "", "export a single user's row")
	return cmd
}

// NewSeedCmd fills empty questionnaires with the default questions.
func NewSeedCmd(configPath *string) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "seed-questions",
		Short: "Seed default questions into domains that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			actor, err := rt.actorFor(as)
			if err != nil {
				return err
			}
			seeded, err := rt.admin.SeedDefaultQuestionnaires(cmd.Context(), actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d domain(s): %v\n", len(seeded), seeded)
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "admin email to act as")
	return cmd
}

// NewSetTimerCmd sets a countdown deadline in both timer scopes.
func NewSetTimerCmd(configPath *string) *cobra.Command {
	var (
		kindRaw string
		endRaw  string
		as      string
	)
	cmd := &cobra.Command{
		Use:   "set-timer",
		Short: "Set the registration or results deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := domain.ParseTimerKind(kindRaw)
			if !ok {
				return fmt.Errorf("%w: %q", domain.ErrInvalidTimerKind, kindRaw)
			}
			end, err := time.Parse(time.RFC3339, endRaw)
			if err != nil {
				return fmt.Errorf("end must be RFC3339: %w", err)
			}
			rt, err := loadRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()
			actor, err := rt.actorFor(as)
			if err != nil {
				return err
			}
			timer, err := rt.admin.SetTimer(cmd.Context(), actor, kind, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ends at %s\n", timer.Kind, timer.EndTime.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&kindRaw, "kind", "", "registration or quiz")
	cmd.Flags().StringVar(&endRaw, "end", "", "deadline, RFC3339")
	cmd.Flags().StringVar(&as, "as", "", "admin email to act as")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
