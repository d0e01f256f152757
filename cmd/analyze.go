package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/ats-checker/internal/analysis"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errDeclined = errors.New("analysis declined")

var confirmPrompt = promptui.Select{
	Label: "Send the resume to the LLM vendor and save the result?",
	Items: []string{PromptYes, PromptNo},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Score a resume and get recruiter feedback against a job description",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("jd", "", "file with the job description ('-' reads stdin)")
	analyzeCmd.Flags().String("jd-text", "", "job description text")
	analyzeCmd.Flags().String("email", "", "email the execution is recorded under")
	analyzeCmd.Flags().String("name", "", "how the candidate is addressed in the feedback")
	analyzeCmd.Flags().String("occupation", "", "candidate occupation stored with the execution")
	analyzeCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	analyzeCmd.Flags().Bool("print-json", false, "print the full report as json")
}

func analyze(cmd *cobra.Command, path string) {
	ctx := context.Background()
	logger, config := setup()

	flags := cmd.Flags()
	jdFile, _ := flags.GetString("jd")
	jdText, _ := flags.GetString("jd-text")

	jobDescription, err := readJobDescription(cmd.InOrStdin(), jdFile, jdText)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}

	if yes, _ := flags.GetBool("yes"); !yes {
		if err := confirm(); err != nil {
			logger.Info("exiting", zap.String("reason", err.Error()))
			return
		}
	}

	selector, err := newSelector(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("configuring llm vendors", zap.Error(err))
	}

	store, err := openHistory(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening history", zap.Error(err))
	}

	email, _ := flags.GetString("email")
	name, _ := flags.GetString("name")
	occupation, _ := flags.GetString("occupation")

	report, err := newAnalyzer(config, selector, store, logger).Analyze(ctx, analysis.Upload{
		Filename:       filepath.Base(path),
		Data:           data,
		JobDescription: jobDescription,
		Email:          email,
		Name:           name,
		Occupation:     occupation,
	})
	if store != nil {
		store.Close()
	}
	if err != nil {
		logger.Fatal("analysis failed", zap.Error(err))
	}

	asJSON, _ := flags.GetBool("print-json")
	if err := printReport(cmd.OutOrStdout(), report, asJSON); err != nil {
		logger.Error("printing report", zap.Error(err))
	}
}

func confirm() error {
	_, answer, err := confirmPrompt.Run()
	if err != nil {
		return err
	}
	if answer != PromptYes {
		return errDeclined
	}
	return nil
}

func readJobDescription(stdin io.Reader, file, text string) (string, error) {
	switch {
	case strings.TrimSpace(text) != "":
		return text, nil
	case file == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		return string(data), err
	default:
		return "", errors.New("a job description is required (--jd or --jd-text)")
	}
}

func printReport(w io.Writer, report *analysis.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if err := printResult(w, report.ATS, false); err != nil {
		return err
	}

	jd := "n/a"
	if report.JDScore != nil {
		jd = fmt.Sprintf("%d%%", *report.JDScore)
	}
	_, err := fmt.Fprintf(w, "\nJob match: %s (%s/%s)\n\n%s\n\n%s\n", jd, report.Vendor, report.Model, report.Feedback, report.Disclaimer)
	return err
}
