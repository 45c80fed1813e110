package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/fetcher"
	"github.com/medahead/targeting-cli/internal/model"
)

var (
	runFile       string
	runUser       string
	runConference string
	runSheet      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Triage a contact list for one conference",
	Long:  "Normalizes the uploaded list, scores every contact against the stored profile, builds a meeting plan, and prints the run result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		profile, err := loadProfile(ctx, env.Store, runUser)
		if err != nil {
			return err
		}

		key := model.RunKey{UserID: runUser, ConferenceID: runConference}
		conference := resolveConference(runConference)

		var result *model.RunResult
		if strings.HasSuffix(strings.ToLower(runFile), ".xlsx") {
			rows, err := fetcher.ReadContactRowsXLSX(runFile, fetcher.XLSXOptions{SheetName: runSheet})
			if err != nil {
				return eris.Wrap(err, "read xlsx")
			}
			result, err = env.Pipeline.Run(ctx, key, profile, conference, rows)
			if err != nil {
				return eris.Wrap(err, "pipeline run")
			}
		} else {
			f, err := os.Open(runFile)
			if err != nil {
				return eris.Wrap(err, "open upload")
			}
			defer f.Close()

			result, err = env.Pipeline.RunCSV(ctx, key, profile, conference, f)
			if err != nil {
				return eris.Wrap(err, "pipeline run")
			}
		}

		zap.L().Info("triage complete",
			zap.String("conference", conference.Name),
			zap.Int("accepted", result.ContactsAccepted),
			zap.Int("rejected", result.ContactsRejected),
			zap.Int("high_priority", result.HighPriority),
			zap.Int("suggestions", result.Suggestions),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "contact list to triage (.csv or .xlsx, required)")
	runCmd.Flags().StringVar(&runUser, "user", "default", "user ID owning the run")
	runCmd.Flags().StringVar(&runConference, "conference", "", "conference ID (required)")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "xlsx sheet name (default first sheet)")
	_ = runCmd.MarkFlagRequired("file")
	_ = runCmd.MarkFlagRequired("conference")
	rootCmd.AddCommand(runCmd)
}
