package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"grammarrelay/internal/bridge"
	"grammarrelay/internal/bus"
	"grammarrelay/internal/markdown"
	"grammarrelay/internal/panel"
)

func newAnalyzeCommand(o *rootOptions) *cobra.Command {
	var (
		plain   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Analyze text through the relay and type the report out",
		Long: `Analyze sends the text (arguments, or stdin when none are given) to the relay
configured by the apiUrl setting and shows the report as it streams in.
Successful analyses are added to the history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimSpace(string(raw))
			}
			if text == "" {
				return errors.New("no text to analyze")
			}

			_, settings, history := o.storage()
			current, err := settings.Init()
			if err != nil {
				return err
			}
			events := bus.New()
			sub := events.Subscribe(4096)
			defer sub.Close()
			br := bridge.New(settings, history, events, bridge.WithTimeout(timeout))

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			if plain {
				return analyzePlain(ctx, cmd.OutOrStdout(), br, sub, text)
			}
			return analyzeInteractive(ctx, cancel, cmd, br, sub, text, markdown.ThemeByName(current.Theme))
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print chunks as plain text instead of the interactive panel")
	cmd.Flags().DurationVar(&timeout, "timeout", bridge.DefaultTimeout, "overall analysis timeout")
	return cmd
}

func analyzePlain(ctx context.Context, out io.Writer, br *bridge.Bridge, sub *bus.Subscription, text string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- br.Analyze(ctx, text) }()
	if _, err := panel.NewLineSink(out).Run(ctx, sub); err != nil {
		return err
	}
	return <-errCh
}

func analyzeInteractive(ctx context.Context, cancel context.CancelFunc, cmd *cobra.Command, br *bridge.Bridge, sub *bus.Subscription, text string, theme markdown.Theme) error {
	m := panel.New(sub, theme)
	m.ExitOnFinish = true
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(cmd.OutOrStdout()))

	errCh := make(chan error, 1)
	go func() { errCh <- br.Analyze(ctx, text) }()
	_, runErr := p.Run()
	// Quitting the panel early abandons the request.
	cancel()
	err := <-errCh
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return err
}
