package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	cl "realtopia/internal/cli"
	"realtopia/internal/game"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newWatchCmd(apiBase *string) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live market (b buy, s sell, p pause, q quit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient(apiBase)
			if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
				return watchPlain(cmd.Context(), client)
			}
			return watchTUI(cmd.Context(), client)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print updates line by line instead of the live board")
	return cmd
}

// watchPlain prints one line per notable update.
func watchPlain(ctx context.Context, client *cl.Client) error {
	return client.Stream(ctx, func(u game.Update) {
		switch u.Kind {
		case game.UpdateState:
			if u.State != nil {
				fmt.Printf("%s balance=%s portfolio=%s paused=%t\n",
					time.Now().Format(time.TimeOnly),
					formatMicros(u.State.BalanceMicros),
					formatMicros(u.State.PortfolioValueMicros),
					u.State.Paused,
				)
			}
		case game.UpdateEventStarted:
			if u.Event != nil {
				warn.Printf("%s event: %s x%.2f\n", time.Now().Format(time.TimeOnly), u.Event.Name, u.Event.Multiplier)
			}
		case game.UpdateAchievementUnlocked:
			if u.Achievement != nil {
				success.Printf("%s achievement: %s +%s\n", time.Now().Format(time.TimeOnly), u.Achievement.Title, formatMicros(u.Achievement.RewardMicros))
			}
		}
	})
}

func watchTUI(ctx context.Context, client *cl.Client) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newWatchModel(ctx, client), tea.WithAltScreen(), tea.WithContext(ctx))
	go func() {
		err := client.Stream(ctx, func(u game.Update) {
			p.Send(updateMsg(u))
		})
		p.Send(streamClosedMsg{err: err})
	}()
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type updateMsg game.Update

type streamClosedMsg struct{ err error }

type actionMsg struct {
	text string
	err  error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00BCD4"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F44336"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9E9E9E"))
	eventStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#FFD700"))
)

type watchModel struct {
	ctx    context.Context
	client *cl.Client

	state      game.GameState
	properties []game.Property
	events     []game.MarketEvent
	unlocked   int
	total      int
	status     string
	table      table.Model
}

func newWatchModel(ctx context.Context, client *cl.Client) watchModel {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 20},
			{Title: "Type", Width: 11},
			{Title: "Area", Width: 7},
			{Title: "Price", Width: 12},
			{Title: "Delta%", Width: 8},
			{Title: "Owned", Width: 5},
			{Title: "P/L", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(game.GeneratedProperties+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#00BCD4"))
	t.SetStyles(styles)
	return watchModel{ctx: ctx, client: client, table: t, status: "connecting..."}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "b":
			if id, ok := m.selectedID(); ok {
				return m, m.trade("buy", id)
			}
		case "s":
			if id, ok := m.selectedID(); ok {
				return m, m.trade("sell", id)
			}
		case "p":
			return m, m.togglePause()
		}
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(min(msg.Height-10, len(m.properties)+1), 3))
	case updateMsg:
		m.apply(game.Update(msg))
		return m, nil
	case actionMsg:
		if msg.err != nil {
			m.status = "error: " + msg.err.Error()
		} else {
			m.status = msg.text
		}
		return m, nil
	case streamClosedMsg:
		if msg.err != nil {
			m.status = "stream closed: " + msg.err.Error()
		} else {
			m.status = "stream closed"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *watchModel) apply(u game.Update) {
	switch u.Kind {
	case game.UpdateState:
		if u.State != nil {
			m.state = *u.State
			if m.status == "connecting..." {
				m.status = "live"
			}
		}
	case game.UpdateProperties:
		m.properties = u.Properties
		m.table.SetRows(propertyRows(u.Properties))
	case game.UpdateEvents:
		m.events = u.Events
	case game.UpdateAchievements:
		m.total = len(u.Achievements)
		m.unlocked = 0
		for _, a := range u.Achievements {
			if a.Unlocked {
				m.unlocked++
			}
		}
	case game.UpdateEventStarted:
		if u.Event != nil {
			m.status = fmt.Sprintf("market event: %s", u.Event.Name)
		}
	case game.UpdateAchievementUnlocked:
		if u.Achievement != nil {
			m.unlocked++
			m.status = fmt.Sprintf("achievement unlocked: %s (+%s)", u.Achievement.Title, formatMicros(u.Achievement.RewardMicros))
		}
	}
}

func (m watchModel) selectedID() (string, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.properties) {
		return "", false
	}
	return m.properties[i].ID, true
}

func (m watchModel) trade(side, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		var (
			r   game.TradeResult
			err error
		)
		if side == "buy" {
			r, err = m.client.Buy(ctx, id)
		} else {
			r, err = m.client.Sell(ctx, id)
		}
		if err != nil {
			return actionMsg{err: err}
		}
		if side == "buy" {
			return actionMsg{text: fmt.Sprintf("bought %s for %s", r.Property.Name, formatMicros(r.Property.PurchaseMicros))}
		}
		return actionMsg{text: fmt.Sprintf("sold %s, profit %s", r.Property.Name, signedMicros(r.ProfitMicros))}
	}
}

func (m watchModel) togglePause() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		st, err := m.client.SetPaused(ctx, nil)
		if err != nil {
			return actionMsg{err: err}
		}
		if st.Paused {
			return actionMsg{text: "market paused"}
		}
		return actionMsg{text: "market running"}
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("REALTOPIA"))
	if m.state.Paused {
		b.WriteString("  " + statusStyle.Render("PAUSED"))
	}
	b.WriteString("\n")
	pl := m.state.NetWorthMicros() - game.StarterBalanceMicros
	b.WriteString(fmt.Sprintf("Balance %s   Portfolio %s   Net worth %s (%s)   Achievements %d/%d\n",
		formatMicros(m.state.BalanceMicros),
		formatMicros(m.state.PortfolioValueMicros),
		formatMicros(m.state.NetWorthMicros()),
		deltaStyle(pl).Render(signedMicros(pl)),
		m.unlocked, m.total,
	))

	if len(m.events) == 0 {
		b.WriteString(mutedStyle.Render("No active market events") + "\n")
	} else {
		now := time.Now()
		for _, e := range m.events {
			style := eventStyle.Background(lipgloss.Color(e.Color))
			b.WriteString(style.Render(fmt.Sprintf("%s x%.2f %s", e.Name, e.Multiplier, e.Remaining(now).Round(time.Second))) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if i := m.table.Cursor(); i >= 0 && i < len(m.properties) {
		b.WriteString(selectedLine(m.properties[i]) + "\n")
	}
	b.WriteString(statusStyle.Render(m.status) + "\n")
	b.WriteString(mutedStyle.Render("up/down select  b buy  s sell  p pause  q quit"))
	return b.String()
}

func propertyRows(props []game.Property) []table.Row {
	rows := make([]table.Row, 0, len(props))
	for _, p := range props {
		owned := ""
		pl := ""
		if p.Owned {
			owned = "yes"
			pl = signedMicros(p.ProfitMicros())
		}
		pct := fmt.Sprintf("%+.2f%%", p.PriceChangePercent)
		rows = append(rows, table.Row{
			truncate(p.Name, 20),
			typeName(p.Type),
			strings.ToLower(string(p.Location)),
			formatMicros(p.CurrentMicros),
			pct,
			owned,
			pl,
		})
	}
	return rows
}

// selectedLine summarizes the highlighted property, tinted by its area.
func selectedLine(p game.Property) string {
	area := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Location.Color()))
	line := fmt.Sprintf("%s  %s  listed %s", p.Name, area.Render(strings.ToLower(string(p.Location))), formatMicros(p.ListingMicros))
	if p.Owned {
		line += "  bought " + formatMicros(p.PurchaseMicros)
	}
	return line
}

// deltaStyle picks gain or loss coloring for a signed value.
func deltaStyle(v int64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	default:
		return mutedStyle
	}
}
