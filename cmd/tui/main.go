package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"buzzbot-go/internal/config"
)

const defaultConfigPath = "config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)
	path := locateConfig(os.Args[1:])

	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== BuzzBot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit buzz detection")
		fmt.Println("3) Edit exit ladder")
		fmt.Println("4) Edit risk knobs")
		fmt.Println("5) Edit assets")
		fmt.Println("6) Validate and save config")
		fmt.Println("7) Launch bot")
		fmt.Println("8) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editBuzz(reader, cfg)
		case "3":
			editExits(reader, cfg)
		case "4":
			editRisk(reader, cfg)
		case "5":
			editAssets(reader, cfg)
		case "6":
			if err := saveConfig(path, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "7":
			launchBot(reader, path)
		case "8":
			reloaded, err := loadConfig(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	mode := "paper"
	if cfg.Trading.LiveTrading {
		mode = "LIVE"
	}
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Mode: %s | portfolio $%.2f | poll every %s\n", mode, cfg.Trading.PortfolioUSD, cfg.Trading.PollInterval())
	fmt.Println("Assets:", strings.Join(cfg.Symbols(), ", "))
	fmt.Println("Sources:", strings.Join(cfg.Collector.Sources, ", "))
	fmt.Printf("Buzz threshold: %.0f%% over a %.0fh baseline (min %d samples, cooldown %.0fm)\n",
		cfg.Buzz.BuzzThreshold, cfg.Buzz.LookbackHours, cfg.Buzz.MinSamples, cfg.Buzz.CooldownMinutes)
	fmt.Printf("Exits: stop %.1f%% | trailing %.1f%% | take %.0f%% at +%.1f%%, %.0f%% at +%.1f%% | time stop %.1fh\n",
		cfg.Exits.StopLossPercent, cfg.Exits.TrailingStopPercent,
		cfg.Exits.PartialFraction*100, cfg.Exits.PartialTakeProfitPercent,
		cfg.Exits.FinalFraction*100, cfg.Exits.TakeProfitPercent, cfg.Exits.TimeStopHours)
	fmt.Printf("Risk: $%.2f per position | max %d open | daily cutoff %.1f%% | ceiling %.1f%% of equity\n",
		cfg.Risk.MaxPositionUSD, cfg.Risk.MaxConcurrentPositions, cfg.Risk.DailyLossCutoffPercent, cfg.Risk.MaxRiskPercent)
	if len(cfg.Risk.Blacklist) > 0 {
		fmt.Println("Blacklist:", strings.Join(cfg.Risk.Blacklist, ", "))
	}
}

func editBuzz(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Buzz Detection ---")
	cfg.Buzz.BuzzThreshold = promptFloat(reader, "Buzz threshold (% above baseline)", cfg.Buzz.BuzzThreshold)
	cfg.Buzz.LookbackHours = promptFloat(reader, "Baseline lookback (hours)", cfg.Buzz.LookbackHours)
	cfg.Buzz.MinSamples = int(promptFloat(reader, "Minimum baseline samples", float64(cfg.Buzz.MinSamples)))
	cfg.Buzz.CooldownMinutes = promptFloat(reader, "Signal cooldown (minutes)", cfg.Buzz.CooldownMinutes)
	cfg.Buzz.MinZScore = promptFloat(reader, "Minimum z-score (0 disables)", cfg.Buzz.MinZScore)
}

func editExits(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Exit Ladder ---")
	cfg.Exits.StopLossPercent = promptFloat(reader, "Stop-loss (%)", cfg.Exits.StopLossPercent)
	cfg.Exits.TrailingStopPercent = promptFloat(reader, "Trailing stop (%)", cfg.Exits.TrailingStopPercent)
	cfg.Exits.PartialTakeProfitPercent = promptFloat(reader, "First take-profit (%)", cfg.Exits.PartialTakeProfitPercent)
	cfg.Exits.PartialFraction = promptPercent(reader, "First take-profit sells (% of original)", cfg.Exits.PartialFraction)
	cfg.Exits.TakeProfitPercent = promptFloat(reader, "Second take-profit (%)", cfg.Exits.TakeProfitPercent)
	cfg.Exits.FinalFraction = promptPercent(reader, "Second take-profit sells (% of original)", cfg.Exits.FinalFraction)
	cfg.Exits.TimeStopHours = promptFloat(reader, "Time stop (hours)", cfg.Exits.TimeStopHours)
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk / Bankroll ---")
	cfg.Trading.PortfolioUSD = promptFloat(reader, "Portfolio (USD)", cfg.Trading.PortfolioUSD)
	cfg.Risk.MaxPositionUSD = promptFloat(reader, "Max position (USD)", cfg.Risk.MaxPositionUSD)
	cfg.Risk.MaxConcurrentPositions = int(promptFloat(reader, "Max concurrent positions", float64(cfg.Risk.MaxConcurrentPositions)))
	cfg.Risk.DailyLossCutoffPercent = promptFloat(reader, "Daily loss cutoff (%)", cfg.Risk.DailyLossCutoffPercent)
	cfg.Risk.MaxRiskPercent = promptFloat(reader, "Per-trade ceiling (% of equity)", cfg.Risk.MaxRiskPercent)
	cfg.Risk.LossCooldownHours = promptFloat(reader, "Loss cooldown (hours)", cfg.Risk.LossCooldownHours)
	if list, ok := promptList(reader, "Blacklist", cfg.Risk.Blacklist); ok {
		cfg.Risk.Blacklist = list
	}
}

func editAssets(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Assets ---")
	list, ok := promptList(reader, "Asset symbols", cfg.Symbols())
	if !ok {
		return
	}
	existing := make(map[string]config.Asset, len(cfg.Assets))
	for _, a := range cfg.Assets {
		existing[strings.ToUpper(a.Symbol)] = a
	}
	assets := make([]config.Asset, 0, len(list))
	for _, sym := range list {
		if a, ok := existing[strings.ToUpper(sym)]; ok {
			assets = append(assets, a)
			continue
		}
		assets = append(assets, config.Asset{Symbol: strings.ToUpper(sym)})
	}
	cfg.Assets = assets
	config.ApplyDefaults(cfg)
}

func launchBot(reader *bufio.Reader, path string) {
	fmt.Println("Launching buzzbot (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/buzzbot", "run", "--config", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start bot: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the bot and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

// promptList reads a comma-separated list; ok is false when the input is blank.
func promptList(reader *bufio.Reader, label string, current []string) ([]string, bool) {
	fmt.Printf("%s [%s] (comma-separated, blank to keep): ", label, strings.Join(current, ", "))
	line, _ := reader.ReadString('\n')
	if strings.TrimSpace(line) == "" {
		return nil, false
	}
	var out []string
	for _, p := range strings.Split(line, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, true
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("%s not found, starting from defaults\n", path)
		cfg, err = config.Defaults(), nil
	}
	if err != nil {
		return nil, err
	}
	config.ApplyDefaults(cfg)
	return cfg, nil
}

// saveConfig refuses to write a config that would not start. Environment
// overrides are considered but never written to disk.
func saveConfig(path string, cfg *config.Config) error {
	config.LoadDotEnv()
	effective := *cfg
	if err := config.ApplyEnv(&effective); err != nil {
		return err
	}
	if err := effective.Validate(); err != nil {
		return err
	}
	return config.Save(path, cfg)
}

func locateConfig(args []string) string {
	path := defaultConfigPath
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		path = args[0]
	}
	return filepath.Clean(path)
}
