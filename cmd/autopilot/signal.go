package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Camier/2SEARX2COOL-sub001/internal/signals"
)

var signalCmd = &cobra.Command{
	Use:   "signal <pause|resume|stop> [directory]",
	Short: "Control a running plan",
	Long: `Pause, resume or stop the run in progress for a project.

pause   stops new task assignments; running tasks finish
resume  continues assigning tasks
stop    cancels the run`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"pause", "resume", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot(args[1:])
		if err != nil {
			return err
		}
		switch args[0] {
		case "pause":
			err = signals.Send(root, signals.Pause)
		case "resume":
			err = signals.Withdraw(root, signals.Pause)
		case "stop":
			err = signals.Send(root, signals.Stop)
		default:
			return fmt.Errorf("unknown signal %q (want pause, resume or stop)", args[0])
		}
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Sent %s to %s", args[0], root), color.FgGreen)
		return nil
	},
}
