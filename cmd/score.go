package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/ats-checker/internal/ats"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scoreCmd = &cobra.Command{
	Use:   "score FILE",
	Short: "Score a PDF or DOCX resume for ATS compatibility",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		score(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().Bool("print-json", false, "print the full result as json")
}

func score(cmd *cobra.Command, path string) {
	ctx := context.Background()
	logger, config := setup()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}

	analyzer := newAnalyzer(config, nil, nil, logger)
	result, err := analyzer.Score(ctx, filepath.Base(path), data)
	if err != nil {
		logger.Fatal("scoring resume", zap.Error(err))
	}

	asJSON, _ := cmd.Flags().GetBool("print-json")
	if err := printResult(cmd.OutOrStdout(), result, asJSON); err != nil {
		logger.Fatal("printing result", zap.Error(err))
	}
}

func printResult(w io.Writer, result *ats.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ATS score: %d%% (%d/%d checks)\n", result.Score, result.Passed(), len(ats.Checks))
	for _, check := range ats.Checks {
		mark := "FAIL"
		if result.Checks[check] {
			mark = "ok"
		}
		fmt.Fprintf(&b, "  %-20s %s\n", check, mark)
	}
	pagesNote := ""
	if result.PagesEstimated {
		pagesNote = " (estimated)"
	}
	fmt.Fprintf(&b, "words: %d, pages: %d%s, images: %d, tables: %d\n", result.Words, result.Pages, pagesNote, result.Images, result.Tables)
	fmt.Fprintf(&b, "fonts: %s (%s)\n", strings.Join(result.Fonts, ", "), result.SafeTypography)
	if len(result.SectionsMissing) > 0 {
		missing := make([]string, 0, len(result.SectionsMissing))
		for _, s := range result.SectionsMissing {
			missing = append(missing, string(s))
		}
		fmt.Fprintf(&b, "missing sections: %s\n", strings.Join(missing, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
