package main

import (
	"bufio"
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ghalamif/VitalFlow"
)

//go:embed assets/banner_color.ansi
var bannerColor string

//go:embed assets/banner_plain.txt
var bannerPlain string

func main() {
	fmt.Print(selectBanner())
	fmt.Println()

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCommand(args)
	case "validate":
		err = validateCommand(args)
	case "replay":
		err = replayCommand(args)
	case "catalog":
		err = catalogCommand(os.Stdout)
	case "stats":
		err = statsCommand(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("vitalflow %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", vitalflow.DefaultConfigPath, "Path to simulator configuration file")
	envFile := fs.String("env", ".env", "Dotenv file with transport credentials")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, *envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flow, err := vitalflow.ConfFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", vitalflow.DefaultConfigPath, "Path to configuration file to validate")
	envFile := fs.String("env", ".env", "Dotenv file with transport credentials")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, *envFile)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good ✅ (transport=%s, tick=%s)\n", *cfgPath, cfg.Transport.Kind, cfg.Simulation.TickInterval)
	return nil
}

func replayCommand(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	cfgPath := fs.String("config", vitalflow.DefaultConfigPath, "Path to simulator configuration file")
	envFile := fs.String("env", ".env", "Dotenv file with transport credentials")
	spoolDir := fs.String("spool", "", "Spool directory (overrides spool.dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*cfgPath, *envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *spoolDir != "" {
		cfg.Spool.Dir = *spoolDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := vitalflow.Replay(ctx, cfg)
	fmt.Printf("replayed %d spooled message(s) via %s, %d pending\n", res.Delivered, cfg.Transport.Kind, res.Remaining)
	return err
}

// loadConfig reads the dotenv file first so secrets can override the YAML.
// Only the default config path may be absent.
func loadConfig(path, envFile string) (*vitalflow.Config, error) {
	if err := vitalflow.LoadEnvFile(envFile); err != nil {
		return nil, fmt.Errorf("env file %s: %w", envFile, err)
	}
	if path == vitalflow.DefaultConfigPath {
		return vitalflow.LoadConfigOrDefault(path)
	}
	return vitalflow.LoadConfig(path)
}

func catalogCommand(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tUNIT\tNORMAL\tCRIT HIGH\tCRIT LOW\tFREQ\tPOWER/MSG")
	for _, s := range vitalflow.DefaultCatalog() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g-%g\t%s\t%s\t%d\t%g\n",
			s.Name, s.Kind, s.Unit,
			s.Normal.Low, s.Normal.High,
			threshold(s.CriticalHigh), threshold(s.CriticalLow),
			s.DataFrequency, s.PowerUsage,
		)
	}
	return tw.Flush()
}

func threshold(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func selectBanner() string {
	if os.Getenv("NO_COLOR") != "" {
		return bannerPlain
	}
	return bannerColor
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9464/metrics", "Monitor metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets, err := scanMetrics(resp.Body,
		"vitalflow_ticks_total",
		"vitalflow_readings_sent_total",
		"vitalflow_alerts_total",
		"vitalflow_send_failures_total",
	)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] ticks=%.0f sent=%.0f alerts=%.0f failures=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["vitalflow_ticks_total"],
		targets["vitalflow_readings_sent_total"],
		targets["vitalflow_alerts_total"],
		targets["vitalflow_send_failures_total"],
	)
	return nil
}

// scanMetrics sums every sample of the named families across their labels.
func scanMetrics(r io.Reader, names ...string) (map[string]float64, error) {
	targets := make(map[string]float64, len(names))
	for _, n := range names {
		targets[n] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if !strings.HasPrefix(line, key+" ") && !strings.HasPrefix(line, key+"{") {
				continue
			}
			fields := strings.Fields(line)
			if value, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
				targets[key] += value
			}
		}
	}
	return targets, scanner.Err()
}

func printUsage() {
	fmt.Printf(`VitalFlow CLI

Usage:
  vitalflow [command] [flags]

Commands:
  run        Simulate the sensor fleet and stream readings (default)
  validate   Load and validate a config file without starting the simulation
  replay     Resend messages kept in the spool after failed sends
  catalog    Print the sensor catalog
  stats      Poll the monitor metrics endpoint and print live counters

Examples:
  vitalflow
  vitalflow run -config ./data/vitalflow.yaml
  vitalflow validate -config ./data/vitalflow.yaml
  vitalflow replay -config ./data/vitalflow.yaml
  vitalflow stats -url http://localhost:9464/metrics -interval 1s
`)
}
