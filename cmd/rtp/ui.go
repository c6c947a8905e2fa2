package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "realtopia/internal/cli"
	"realtopia/internal/game"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func renderDashboard(v cl.StateView, owned []game.Property) {
	st := v.State
	accent.Println("\n== REALTOPIA ==")
	pl := v.NetWorthMicros - game.StarterBalanceMicros
	fmt.Printf("Balance:            %s coins\n", formatMicros(st.BalanceMicros))
	fmt.Printf("Portfolio Value:    %s coins\n", formatMicros(st.PortfolioValueMicros))
	fmt.Printf("Net Worth:          %s coins\n", formatMicros(v.NetWorthMicros))
	fmt.Printf("P/L vs Start:       %s coins\n", colorizeMicros(pl))
	fmt.Printf("Realized Profit:    %s coins\n", colorizeMicros(st.TotalProfitMicros))
	fmt.Printf("Owned / Sold:       %d / %d\n", st.TotalPropertiesOwned, st.TotalPropertiesSold)
	if st.Paused {
		fmt.Printf("Market:             %s\n", warn.Sprint("PAUSED"))
	} else {
		fmt.Printf("Market:             %s\n", success.Sprint("RUNNING"))
	}

	unlocked := make([]string, 0, len(st.UnlockedPropertyTypes))
	for _, t := range st.UnlockedPropertyTypes {
		unlocked = append(unlocked, typeName(t))
	}
	fmt.Printf("Unlocked Types:     %s\n", strings.Join(unlocked, ", "))
	if v.NextUnlock != nil {
		fmt.Printf("Next Unlock:        %s at %s net worth (%s to go)\n",
			typeName(v.NextUnlock.Type),
			formatMicros(v.NextUnlock.NetWorthMicros),
			formatMicros(v.NextUnlock.RemainingMicros),
		)
	}

	fmt.Println()
	accent.Println("Holdings")
	if len(owned) == 0 {
		printInfo("No properties owned yet.")
	} else {
		renderPropertyRows(owned)
	}
	fmt.Println()
}

func renderMarket(info game.MarketInfo) {
	accent.Println("\n== MARKET ==")
	fmt.Printf("Trend:       %s\n", colorizePercent(info.Trend*100))
	fmt.Printf("Volatility:  %s\n", info.Volatility)
	fmt.Println()
	renderEvents(info.Events)
}

func renderPropertiesList(props []game.Property, filter game.PropertyFilter) {
	accent.Printf("\n== PROPERTIES (%s) ==\n", filter)
	if len(props) == 0 {
		printInfo("No properties match.")
		return
	}
	renderPropertyRows(props)
	fmt.Println()
}

func renderPropertyRows(props []game.Property) {
	fmt.Printf("%-8s %-20s %-11s %-7s %5s %12s %12s %9s %-6s %12s\n", "ID", "NAME", "TYPE", "AREA", "GRID", "PRICE", "DELTA", "DELTA%", "OWNED", "P/L")
	for _, p := range props {
		owned := "no"
		pl := neutral.Sprint("-")
		if p.Owned {
			owned = "yes"
			pl = colorizeMicros(p.ProfitMicros())
		}
		fmt.Printf("%-8s %-20s %-11s %-7s %5s %12s %12s %9s %-6s %12s\n",
			shortID(p.ID),
			truncate(p.Name, 20),
			typeName(p.Type),
			strings.ToLower(string(p.Location)),
			fmt.Sprintf("%d,%d", p.GridX, p.GridY),
			formatMicros(p.CurrentMicros),
			colorizeMicros(p.PriceChangeMicros),
			colorizePercent(p.PriceChangePercent),
			owned,
			pl,
		)
	}
}

func renderPropertyDetail(d game.PropertyDetail) {
	p := d.Property
	accent.Printf("\n== %s ==\n", p.Name)
	spec, _ := p.Type.Spec()
	fmt.Printf("ID:          %s\n", p.ID)
	fmt.Printf("Type:        %s\n", typeName(p.Type))
	fmt.Printf("Location:    %s (x%.1f)\n", strings.ToLower(string(p.Location)), p.Location.PriceMultiplier())
	fmt.Printf("Grid:        %d,%d\n", p.GridX, p.GridY)
	fmt.Printf("Listing:     %s\n", formatMicros(p.ListingMicros))
	fmt.Printf("Price:       %s (%s, %s)\n", formatMicros(p.CurrentMicros), colorizeMicros(p.PriceChangeMicros), colorizePercent(p.PriceChangePercent))
	fmt.Printf("Band:        %s .. %s\n", formatMicros(game.PriceFloor(p.Type)), formatMicros(game.PriceCeiling(p.Type)))
	fmt.Printf("Risk:        %.2f\n", spec.Risk)
	if p.Owned {
		fmt.Printf("Bought For:  %s\n", formatMicros(p.PurchaseMicros))
		fmt.Printf("P/L:         %s (%s)\n", colorizeMicros(p.ProfitMicros()), colorizePercent(p.ProfitPercent()))
		if p.PurchasedAt != nil {
			fmt.Printf("Bought At:   %s\n", p.PurchasedAt.Local().Format(time.DateTime))
		}
	}
	if len(d.Series) > 0 {
		fmt.Println()
		accent.Println("Recent Prices")
		fmt.Println(sparkline(d.Series, 48))
		first, last := d.Series[0].PriceMicros, d.Series[len(d.Series)-1].PriceMicros
		fmt.Printf("%d ticks, %s -> %s\n", len(d.Series), formatMicros(first), formatMicros(last))
	}
	fmt.Println()
}

func renderTradeResult(side string, r game.TradeResult) {
	switch side {
	case "buy":
		printSuccess(fmt.Sprintf("Bought %s for %s coins.", r.Property.Name, formatMicros(r.Property.PurchaseMicros)))
	default:
		printSuccess(fmt.Sprintf("Sold %s for %s coins.", r.Property.Name, formatMicros(r.Property.CurrentMicros)))
		fmt.Printf("Profit:   %s\n", colorizeMicros(r.ProfitMicros))
	}
	fmt.Printf("Balance:  %s\n", formatMicros(r.State.BalanceMicros))
}

func renderEvents(events []game.MarketEvent) {
	accent.Println("Active Events")
	if len(events) == 0 {
		printInfo("No active market events.")
		return
	}
	now := time.Now()
	fmt.Printf("%-22s %8s %10s  %s\n", "EVENT", "MULT", "LEFT", "AFFECTS")
	for _, e := range events {
		mult := fmt.Sprintf("x%.2f", e.Multiplier)
		if e.Multiplier >= 1 {
			mult = success.Sprint(mult)
		} else {
			mult = danger.Sprint(mult)
		}
		affects := make([]string, 0, len(e.AffectedTypes))
		for _, t := range e.AffectedTypes {
			affects = append(affects, typeName(t))
		}
		fmt.Printf("%-22s %8s %10s  %s\n",
			truncate(e.Name, 22),
			mult,
			e.Remaining(now).Round(time.Second),
			strings.Join(affects, ", "),
		)
	}
}

func renderAchievements(achs []game.Achievement) {
	accent.Println("\n== ACHIEVEMENTS ==")
	if len(achs) == 0 {
		printInfo("Nothing here yet.")
		return
	}
	for _, a := range achs {
		mark := neutral.Sprint("[ ]")
		if a.Unlocked {
			mark = success.Sprint("[x]")
		}
		fmt.Printf("%s %-20s %s %6.1f%%  +%s\n",
			mark,
			truncate(a.Title, 20),
			progressBar(a.ProgressRatio(), 20),
			a.ProgressRatio()*100,
			formatMicros(a.RewardMicros),
		)
		fmt.Printf("    %s\n", a.Description)
	}
	fmt.Println()
}

func typeName(t game.PropertyType) string {
	if spec, ok := t.Spec(); ok {
		return spec.DisplayName
	}
	return string(t)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func progressBar(ratio float64, width int) string {
	ratio = min(max(ratio, 0), 1)
	filled := int(ratio * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders the last width points of series.
func sparkline(series []game.PricePoint, width int) string {
	if len(series) > width {
		series = series[len(series)-width:]
	}
	if len(series) == 0 {
		return ""
	}
	lo, hi := series[0].PriceMicros, series[0].PriceMicros
	for _, pt := range series {
		lo = min(lo, pt.PriceMicros)
		hi = max(hi, pt.PriceMicros)
	}
	out := make([]rune, 0, len(series))
	for _, pt := range series {
		idx := 0
		if hi > lo {
			idx = int(float64(pt.PriceMicros-lo) / float64(hi-lo) * float64(len(sparkTicks)-1))
		}
		out = append(out, sparkTicks[idx])
	}
	return string(out)
}

func colorizeMicros(v int64) string {
	text := signedMicros(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizePercent(v float64) string {
	text := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatMicros(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / game.MicrosPerCoin
	frac := (v % game.MicrosPerCoin) / 10_000
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func signedMicros(v int64) string {
	if v > 0 {
		return "+" + formatMicros(v)
	}
	return formatMicros(v)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
