package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medahead/targeting-cli/internal/model"
	"github.com/medahead/targeting-cli/pkg/notion"
)

var (
	exportUser       string
	exportConference string
	exportDB         string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the latest meeting plan to Notion",
	Long:  "Archives previously exported pages for the conference and creates one page per meeting suggestion.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (TARGETING_NOTION_TOKEN)")
		}
		dbID := exportDB
		if dbID == "" {
			dbID = cfg.Notion.PlanDB
		}
		if dbID == "" {
			return eris.New("notion database is required (--db or TARGETING_NOTION_PLAN_DB)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		key := model.RunKey{UserID: exportUser, ConferenceID: exportConference}
		plan, err := st.GetPlan(ctx, key)
		if err != nil {
			return eris.Wrap(err, "load plan")
		}
		if len(plan) == 0 {
			return eris.Errorf("no meeting plan stored for conference %s, run triage first", exportConference)
		}

		client := notion.NewClient(cfg.Notion.Token)
		created, err := notion.ExportPlan(ctx, client, dbID, exportConference, plan)
		if err != nil {
			return err
		}

		zap.L().Info("plan exported",
			zap.String("conference_id", exportConference),
			zap.Int("pages", created),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportUser, "user", "default", "user ID owning the plan")
	exportCmd.Flags().StringVar(&exportConference, "conference", "", "conference ID (required)")
	exportCmd.Flags().StringVar(&exportDB, "db", "", "Notion database ID (default from config)")
	_ = exportCmd.MarkFlagRequired("conference")
	rootCmd.AddCommand(exportCmd)
}
