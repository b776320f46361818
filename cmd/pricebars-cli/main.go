// Command pricebars-cli is a one-shot command-line front end over the
// pricebars library: it loads configuration and runs one command per
// invocation, either get-prices (rendering the result as a table), export
// (writing cached bars to Parquet), or version.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"pricebars/internal/config"
	"pricebars/internal/domain"
	"pricebars/pkg/pricebars"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pricebars-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                                   Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  get-prices SYMBOL START END [options]     Fetch and display daily bars\n")
		fmt.Fprintf(os.Stderr, "  export SYMBOL START END DIR [options]     Export cached bars to Parquet\n")
		fmt.Fprintf(os.Stderr, "\nget-prices options:\n")
		fmt.Fprintf(os.Stderr, "  -provider B|T|AUTO   provider selection (default AUTO)\n")
		fmt.Fprintf(os.Stderr, "  -refresh             force re-fetch, bypassing the cache\n")
		fmt.Fprintf(os.Stderr, "  -config PATH         config file path (default config/pricebars.yaml)\n")
		fmt.Fprintf(os.Stderr, "\nexport options:\n")
		fmt.Fprintf(os.Stderr, "  -provider B|T        provider whose cached rows to export (default B)\n")
		fmt.Fprintf(os.Stderr, "  -config PATH         config file path (default config/pricebars.yaml)\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("pricebars-cli %s\n", version)
	case "get-prices":
		if err := runGetPrices(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "get-prices: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "export: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func runGetPrices(args []string) error {
	fs := flag.NewFlagSet("get-prices", flag.ExitOnError)
	providerFlag := fs.String("provider", "AUTO", "provider selection: B, T, or AUTO")
	refreshFlag := fs.Bool("refresh", false, "force re-fetch, bypassing the cache")
	configPath := fs.String("config", "config/pricebars.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("usage: get-prices SYMBOL START END [options]")
	}
	symbol := fs.Arg(0)
	start, err := time.Parse("2006-01-02", fs.Arg(1))
	if err != nil {
		return fmt.Errorf("parsing start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", fs.Arg(2))
	if err != nil {
		return fmt.Errorf("parsing end date: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := pricebars.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing client: %w", err)
	}
	defer client.Close()

	result, err := client.GetPrices(context.Background(), symbol, start, end, domain.Selection(*providerFlag), *refreshFlag)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	providerFlag := fs.String("provider", "B", "provider whose cached rows to export: B or T")
	configPath := fs.String("config", "config/pricebars.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 4 {
		return fmt.Errorf("usage: export SYMBOL START END DIR [options]")
	}
	symbol := fs.Arg(0)
	start, err := time.Parse("2006-01-02", fs.Arg(1))
	if err != nil {
		return fmt.Errorf("parsing start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", fs.Arg(2))
	if err != nil {
		return fmt.Errorf("parsing end date: %w", err)
	}
	dataDir := fs.Arg(3)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := pricebars.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing client: %w", err)
	}
	defer client.Close()

	provider, err := parseExportProvider(*providerFlag)
	if err != nil {
		return err
	}
	if err := client.ExportSnapshot(context.Background(), symbol, provider, start, end, dataDir); err != nil {
		return fmt.Errorf("exporting snapshot: %w", err)
	}
	fmt.Printf("exported %s [%s, %s] from provider %s to %s\n", symbol,
		start.Format("2006-01-02"), end.Format("2006-01-02"), provider, dataDir)
	return nil
}

func parseExportProvider(flagValue string) (domain.ProviderID, error) {
	switch flagValue {
	case "B":
		return domain.ProviderBarchart, nil
	case "T":
		return domain.ProviderTiingo, nil
	default:
		return "", fmt.Errorf("export requires a concrete provider (B or T), got %q", flagValue)
	}
}

func printResult(result pricebars.Result) {
	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Printf("%s  %s to %s  provider=%s\n", result.Symbol,
		result.Start.Format("2006-01-02"), result.End.Format("2006-01-02"), result.Provider)
	color.New(color.FgGreen).Printf("from_cache=%d  ", result.FromCache)
	color.New(color.FgYellow).Printf("from_api=%d\n\n", result.FromAPI)

	table := tablewriter.NewTable(os.Stdout)
	table.Header([]string{"Date", "Open", "High", "Low", "Close", "Volume", "Adj Close", "Provider"})
	for _, bar := range result.Bars {
		table.Append([]string{
			bar.Date.Format("2006-01-02"),
			formatNullable(bar.Open),
			formatNullable(bar.High),
			formatNullable(bar.Low),
			formatNullable(bar.Close),
			formatNullable(bar.Volume),
			formatNullable(bar.AdjClose),
			string(bar.Provider),
		})
	}
	table.Render()
}

func formatNullable(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
