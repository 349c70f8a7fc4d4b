package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rgehrsitz/tyche/internal/logging"
	"github.com/rgehrsitz/tyche/internal/session"
	"github.com/rgehrsitz/tyche/internal/tui"
)

var exploreCmd = &cobra.Command{
	Use:   "explore [design-file]",
	Short: "Explore a design interactively in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		// the alternate screen owns the terminal; only the log file, if any, is written
		logCfg := logging.FromSettings(a.settings.Log)
		logCfg.Output = io.Discard
		a.logger = logging.New(logCfg)
		a.sugar = a.logger.Sugar()
		defer a.close()

		compiled, err := a.loadDesign(cmd, args[0])
		if err != nil {
			return err
		}
		opts := a.sessionOptions()
		if pairs, _ := cmd.Flags().GetStringToString("invest"); len(pairs) > 0 {
			if opts.Initial, err = parseAmounts(pairs); err != nil {
				return err
			}
		}
		s, err := session.NewFromCompiled(compiled, opts)
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()
		p := tea.NewProgram(tui.NewModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running explorer: %w", err)
		}
		return nil
	},
}

func init() {
	exploreCmd.Flags().StringToString("invest", nil, "Starting investment per category (default half of each maximum)")
}
