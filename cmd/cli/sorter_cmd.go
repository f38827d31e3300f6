package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	quickUpdate bool
	userID      uint
	filterLabel string
	filterRatio float64
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the local database and retrain the models",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		users, err := a.users(userID)
		if err != nil {
			return err
		}
		failed := 0
		for _, user := range users {
			transport, err := a.sync.Transport(cmd.Context(), user.ID)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "user %d: %v\n", user.ID, err)
				failed++
				continue
			}
			syncReport, trainReport, err := a.sorter.UpdateAndFit(cmd.Context(), user.ID, transport, quickUpdate)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "user %d: %v\n", user.ID, err)
				failed++
				continue
			}
			if err := printJSON(cmd, map[string]interface{}{"sync": syncReport, "train": trainReport}); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d users failed", failed, len(users))
		}
		return nil
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Move the messages of a label to their predicted labels",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		label := filterLabel
		if label == "" {
			label = a.cfg.SorterLabel
		}
		ratio := filterRatio
		if ratio == 0 {
			ratio = a.cfg.ML.RecommendationRatio
		}

		users, err := a.users(userID)
		if err != nil {
			return err
		}
		failed := 0
		for _, user := range users {
			transport, err := a.sync.Transport(cmd.Context(), user.ID)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "user %d: %v\n", user.ID, err)
				failed++
				continue
			}
			report, err := a.sorter.FilterMessagesFromServer(cmd.Context(), user.ID, transport, label, ratio)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "user %d: %v\n", user.ID, err)
				failed++
				continue
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d users failed", failed, len(users))
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the task, label and filter status of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userID == 0 {
			return fmt.Errorf("--user is required")
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		status, err := a.tasks.StatusDict(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printJSON(cmd, status)
	},
}

func init() {
	updateCmd.Flags().BoolVarP(&quickUpdate, "quick", "q", false, "only fetch new messages, skip deletions and label changes")
	for _, c := range []*cobra.Command{updateCmd, filterCmd, statusCmd} {
		c.Flags().UintVarP(&userID, "user", "u", 0, "user id (default: all users)")
	}
	filterCmd.Flags().StringVarP(&filterLabel, "label", "l", "", "label to filter (default: the sorter label)")
	filterCmd.Flags().Float64VarP(&filterRatio, "ratio", "r", 0, "recommendation threshold in (0,1) (default: ML_RECOMMENDATION_RATIO)")
}
