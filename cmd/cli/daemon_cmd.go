package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	taskdomain "github.com/jan-janssen/gmailsorter/internal/task/domain"
	"github.com/jan-janssen/gmailsorter/internal/task/scheduler"

	"github.com/spf13/cobra"
)

var (
	daemonUpdate    bool
	daemonFilter    bool
	daemonScheduled bool
	daemonInterval  time.Duration
)

// daemonMode maps the flag combination onto a run mode.
func daemonMode(update, filter, scheduled bool) (taskdomain.Mode, error) {
	switch {
	case update && filter:
		return taskdomain.ModeAll, nil
	case update:
		return taskdomain.ModeUpdate, nil
	case scheduled:
		return taskdomain.ModeSelect, nil
	case filter:
		return taskdomain.ModeFetch, nil
	default:
		return "", fmt.Errorf("select at least one of --update, --filter, --scheduled")
	}
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the update and fetch tasks of all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := daemonMode(daemonUpdate, daemonFilter, daemonScheduled)
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		if n := a.pushNotifier(cmd.Context()); n != nil {
			a.tasks.SetNotifier(n)
		}

		if daemonInterval <= 0 {
			report, err := a.tasks.Run(cmd.Context(), mode)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		s := scheduler.NewScheduler(a.tasks, mode, daemonInterval)
		s.Start()
		<-ctx.Done()
		s.Stop()
		return nil
	},
}

func init() {
	daemonCmd.Flags().BoolVarP(&daemonUpdate, "update", "u", false, "update local database and retrain")
	daemonCmd.Flags().BoolVarP(&daemonFilter, "filter", "f", false, "filter the sorter label")
	daemonCmd.Flags().BoolVarP(&daemonScheduled, "scheduled", "s", false, "first-time updates plus filtering")
	daemonCmd.Flags().DurationVarP(&daemonInterval, "interval", "i", 0, "repeat every interval until interrupted (default: run once)")
}
