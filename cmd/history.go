package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spigell/ats-checker/internal/history"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export recorded analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded analyses, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		listHistory(cmd)
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded analyses as csv or xlsx, or one analysis as a pdf report",
	Run: func(cmd *cobra.Command, _ []string) {
		exportHistory(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyExportCmd)

	historyCmd.PersistentFlags().String("email", "", "only executions of this email")
	historyListCmd.Flags().Int("limit", 20, "maximum rows, 0 for all")
	historyExportCmd.Flags().StringP("format", "f", "csv", "csv, xlsx or pdf")
	historyExportCmd.Flags().String("id", "", "export a single execution (required for pdf)")
	historyExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

func historyFilter(cmd *cobra.Command) history.ListFilter {
	email, _ := cmd.Flags().GetString("email")
	limit, _ := cmd.Flags().GetInt("limit")
	return history.ListFilter{Email: email, Limit: limit}
}

func withStore(fn func(ctx context.Context, store *history.Store, logger *zap.Logger) error) {
	ctx := context.Background()
	logger, config := setup()

	config.History.Enabled = true
	store, err := openHistory(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening history", zap.Error(err))
	}

	err = fn(ctx, store, logger)
	store.Close()
	if err != nil {
		logger.Fatal("history command failed", zap.Error(err))
	}
}

func listHistory(cmd *cobra.Command) {
	withStore(func(ctx context.Context, store *history.Store, logger *zap.Logger) error {
		executions, err := store.List(ctx, historyFilter(cmd))
		if err != nil {
			return err
		}

		logger.Debug("executions loaded", zap.Int("count", len(executions)))

		w := cmd.OutOrStdout()
		for _, e := range executions {
			jd := "-"
			if e.JDScore != nil {
				jd = fmt.Sprintf("%d%%", *e.JDScore)
			}
			fmt.Fprintf(w, "%s  %s  %-24s  ats=%3d%%  jd=%4s  %s/%s  %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04"), e.ID, e.Filename, e.ATSScore, jd, e.Vendor, e.Model, e.Email)
		}
		return nil
	})
}

func exportHistory(cmd *cobra.Command) {
	withStore(func(ctx context.Context, store *history.Store, logger *zap.Logger) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		id, _ := cmd.Flags().GetString("id")

		var buf bytes.Buffer
		count, err := writeExport(ctx, store, &buf, format, id, historyFilter(cmd))
		if err != nil {
			return err
		}

		if output == "" {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
		} else {
			err = os.WriteFile(output, buf.Bytes(), 0o644)
		}
		if err != nil {
			return err
		}

		logger.Info("executions exported", zap.Int("count", count), zap.String("format", format), zap.String("output", output))
		return nil
	})
}

type executionSource interface {
	Get(ctx context.Context, id string) (*history.Execution, error)
	List(ctx context.Context, f history.ListFilter) ([]history.Execution, error)
}

// writeExport writes the selected executions in format and reports how many were written.
// A non-empty id selects that execution alone.
func writeExport(ctx context.Context, src executionSource, w io.Writer, format, id string, filter history.ListFilter) (int, error) {
	var write func(io.Writer, []history.Execution) error
	switch format {
	case "csv":
		write = history.WriteCSV
	case "xlsx":
		write = history.WriteXLSX
	case "pdf":
		if id == "" {
			return 0, errors.New("pdf export needs --id")
		}
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}

	var executions []history.Execution
	if id != "" {
		e, err := src.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		executions = []history.Execution{*e}
	} else {
		var err error
		if executions, err = src.List(ctx, filter); err != nil {
			return 0, err
		}
	}

	if format == "pdf" {
		return 1, history.WritePDF(w, executions[0])
	}
	return len(executions), write(w, executions)
}
