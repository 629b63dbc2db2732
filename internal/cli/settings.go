package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"grammarrelay/internal/config"
	"grammarrelay/internal/store"
)

func newSettingsCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the shared client settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, _ := o.storage()
			s, err := settings.Get()
			if err != nil {
				return err
			}
			return printSettings(cmd.OutOrStdout(), s)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set key=value...",
		Short: "Update settings (apiUrl, minWords, maxWords, theme, autoTrigger, shortcutKey)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parsePatch(args)
			if err != nil {
				return err
			}
			_, settings, _ := o.storage()
			s, err := settings.Update(patch)
			if err != nil {
				return err
			}
			return printSettings(cmd.OutOrStdout(), s)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the settings whenever another instance changes them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, settings, _ := o.storage()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchSettings(ctx, cmd.OutOrStdout(), kv, settings)
		},
	})
	return cmd
}

func watchSettings(ctx context.Context, out io.Writer, kv *store.FileKV, settings *store.SettingsStore) error {
	changes := make(chan struct{}, 1)
	if err := kv.Watch(ctx, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s\n", kv.Path())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			s, err := settings.Get()
			if err != nil {
				config.Logger.Warn("failed to reload settings", "error", err)
				continue
			}
			fmt.Fprintln(out, "---")
			if err := printSettings(out, s); err != nil {
				return err
			}
		}
	}
}

func printSettings(out io.Writer, s store.Settings) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	_, err = out.Write(raw)
	return err
}

func parsePatch(args []string) (store.SettingsPatch, error) {
	var p store.SettingsPatch
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return p, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "apiUrl":
			p.APIURL = &value
		case "minWords", "maxWords":
			n, err := strconv.Atoi(value)
			if err != nil {
				return p, fmt.Errorf("%s: %w", key, err)
			}
			if key == "minWords" {
				p.MinWords = &n
			} else {
				p.MaxWords = &n
			}
		case "theme":
			if value != "light" && value != "dark" {
				return p, fmt.Errorf("theme must be light or dark, got %q", value)
			}
			p.Theme = &value
		case "autoTrigger":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return p, fmt.Errorf("%s: %w", key, err)
			}
			p.AutoTrigger = &b
		case "shortcutKey":
			p.ShortcutKey = &value
		default:
			return p, fmt.Errorf("unknown setting %q", key)
		}
	}
	return p, nil
}
