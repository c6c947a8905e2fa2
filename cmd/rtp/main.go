package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cl "realtopia/internal/cli"
	"realtopia/internal/config"
	"realtopia/internal/game"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "rtp",
		Short:        "Realtopia CLI game client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newDashCmd(&apiBase),
		newMarketCmd(&apiBase),
		newPropertiesCmd(&apiBase),
		newEventsCmd(&apiBase),
		newAchievementsCmd(&apiBase),
		newPauseCmd(&apiBase),
		newResetCmd(&apiBase),
		newWatchCmd(&apiBase),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newDashCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "dash",
		Aliases: []string{"state"},
		Short:   "Show balance, portfolio and unlocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			st, err := client.State(ctx)
			if err != nil {
				return err
			}
			owned, err := client.Properties(ctx, game.FilterOwned, "")
			if err != nil {
				return err
			}
			renderDashboard(st, owned)
			return nil
		},
	}
}

func newMarketCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "market",
		Short: "Show market trend, volatility and events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			info, err := newClient(apiBase).Market(ctx)
			if err != nil {
				return err
			}
			renderMarket(info)
			return nil
		},
	}
}

func newPropertiesCmd(apiBase *string) *cobra.Command {
	props := &cobra.Command{
		Use:     "properties",
		Short:   "Property market commands",
		Aliases: []string{"property", "props"},
	}
	props.AddCommand(newPropertiesListCmd(apiBase))
	props.AddCommand(newPropertiesShowCmd(apiBase))
	props.AddCommand(newTradeCmd(apiBase, "buy"))
	props.AddCommand(newTradeCmd(apiBase, "sell"))
	return props
}

func newPropertiesListCmd(apiBase *string) *cobra.Command {
	var typeFlag string
	cmd := &cobra.Command{
		Use:   "list [all|owned|available]",
		Short: "List properties on the grid",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := game.FilterAll
			if len(args) == 1 {
				filter = game.PropertyFilter(strings.ToLower(strings.TrimSpace(args[0])))
			}
			switch filter {
			case game.FilterAll, game.FilterOwned, game.FilterAvailable:
			default:
				return fmt.Errorf("unknown filter %q: use all, owned or available", filter)
			}
			var typ game.PropertyType
			if typeFlag != "" {
				parsed, err := game.ParsePropertyType(typeFlag)
				if err != nil {
					return fmt.Errorf("%w: %q", err, typeFlag)
				}
				typ = parsed
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			props, err := newClient(apiBase).Properties(ctx, filter, typ)
			if err != nil {
				return err
			}
			renderPropertiesList(props, filter)
			return nil
		},
	}
	cmd.Flags().StringVar(&typeFlag, "type", "", "only show one category (apartment, house, villa, office, mall, skyscraper)")
	return cmd
}

func newPropertiesShowCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Inspect one property and its recent prices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			id, err := propertyIDFromArgsOrPrompt(ctx, client, args)
			if err != nil {
				return err
			}
			detail, err := client.Property(ctx, id)
			if err != nil {
				return err
			}
			renderPropertyDetail(detail)
			return nil
		},
	}
}

func newTradeCmd(apiBase *string, side string) *cobra.Command {
	short := "Buy a property at its current price"
	if side == "sell" {
		short = "Sell an owned property at its current price"
	}
	return &cobra.Command{
		Use:   side + " [id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			id, err := propertyIDFromArgsOrPrompt(ctx, client, args)
			if err != nil {
				return err
			}
			var result game.TradeResult
			if side == "buy" {
				result, err = client.Buy(ctx, id)
			} else {
				result, err = client.Sell(ctx, id)
			}
			if err != nil {
				return err
			}
			renderTradeResult(side, result)
			return nil
		},
	}
}

func newEventsCmd(apiBase *string) *cobra.Command {
	events := &cobra.Command{
		Use:   "events",
		Short: "Show active market events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Events(ctx)
			if err != nil {
				return err
			}
			renderEvents(out)
			return nil
		},
	}
	events.AddCommand(&cobra.Command{
		Use:       "start [code]",
		Short:     "Start a market event now",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: game.EventCodes(),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = strings.TrimSpace(args[0])
			} else {
				codes := game.EventCodes()
				picked, err := promptChoice("Event", codes, codes[0])
				if err != nil {
					return err
				}
				code = picked
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ev, err := newClient(apiBase).StartEvent(ctx, code)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s started (x%.2f for %s).", ev.Name, ev.Multiplier, ev.Duration))
			return nil
		},
	})
	return events
}

func newAchievementsCmd(apiBase *string) *cobra.Command {
	var unlocked bool
	cmd := &cobra.Command{
		Use:     "achievements",
		Aliases: []string{"ach"},
		Short:   "Show achievement progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Achievements(ctx, unlocked)
			if err != nil {
				return err
			}
			renderAchievements(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unlocked, "unlocked", false, "only show unlocked achievements")
	return cmd
}

func newPauseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:       "pause [on|off]",
		Short:     "Pause or resume the market (toggles without an argument)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var paused *bool
			if len(args) == 1 {
				v, err := parseOnOff(args[0])
				if err != nil {
					return err
				}
				paused = &v
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := newClient(apiBase).SetPaused(ctx, paused)
			if err != nil {
				return err
			}
			if st.Paused {
				printWarn("Market paused.")
			} else {
				printSuccess("Market running.")
			}
			return nil
		},
	}
}

func newResetCmd(apiBase *string) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Start over on a fresh board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				answer, err := promptChoice("Reset wipes all progress. Continue", []string{"yes", "no"}, "no")
				if err != nil {
					return err
				}
				if answer != "yes" {
					printInfo("Reset cancelled.")
					return nil
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := newClient(apiBase).Reset(ctx)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("New game started with %s coins.", formatMicros(st.BalanceMicros)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func propertyIDFromArgsOrPrompt(ctx context.Context, client *cl.Client, args []string) (string, error) {
	var ref string
	if len(args) > 0 {
		ref = args[0]
	} else {
		v, err := promptRequired("Property id")
		if err != nil {
			return "", err
		}
		ref = v
	}
	props, err := client.Properties(ctx, game.FilterAll, "")
	if err != nil {
		return "", err
	}
	return resolvePropertyID(props, ref)
}

// resolvePropertyID accepts a full id or a unique id prefix.
func resolvePropertyID(props []game.Property, ref string) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return "", fmt.Errorf("property id is required")
	}
	var match string
	for _, p := range props {
		id := strings.ToLower(p.ID)
		if id == ref {
			return p.ID, nil
		}
		if strings.HasPrefix(id, ref) {
			if match != "" {
				return "", fmt.Errorf("property id %q is ambiguous", ref)
			}
			match = p.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no property matches %q", ref)
	}
	return match, nil
}
