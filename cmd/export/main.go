package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/calculator"
	"github.com/ashmitsharp/tradebook/internal/config"
	"github.com/ashmitsharp/tradebook/internal/exchanges"
	"github.com/ashmitsharp/tradebook/internal/models"
	"github.com/ashmitsharp/tradebook/internal/query"
	"github.com/ashmitsharp/tradebook/internal/report"
	"github.com/ashmitsharp/tradebook/pkg/utils"
)

type options struct {
	accountsPath string
	symbol       string
	start        string
	end          string
	days         int
	exchange     string
	out          string
	dumpJSON     bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var opts options
	flag.StringVar(&opts.accountsPath, "accounts", "accounts.yaml", "YAML file listing exchange accounts")
	flag.StringVar(&opts.symbol, "symbol", "", "Trading pair, e.g. BTCUSDT")
	flag.StringVar(&opts.start, "start", "", "First day (YYYY-MM-DD)")
	flag.StringVar(&opts.end, "end", "", "Last day (YYYY-MM-DD)")
	flag.IntVar(&opts.days, "days", 0, "Query the last N days ending at -end or today")
	flag.StringVar(&opts.exchange, "exchange", "", "Only query accounts on this exchange")
	flag.StringVar(&opts.out, "out", "", "CSV output path (default <symbol>_multi_account_analysis_<time>.csv)")
	flag.BoolVar(&opts.dumpJSON, "json", false, "Also write the merged trades as JSON next to the CSV")
	flag.Parse()

	if opts.symbol == "" {
		log.Fatal("-symbol is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := utils.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Fatal("Export failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *zap.Logger) error {
	accounts, err := loadAccounts(opts.accountsPath)
	if err != nil {
		return err
	}
	endpoints, err := exchanges.LoadEndpoints(cfg.Exchanges.EndpointsFile)
	if err != nil {
		return err
	}
	factory := exchanges.NewFactory(logger, endpoints,
		exchanges.WithRequestTimeout(cfg.Exchanges.RequestTimeout),
		exchanges.WithRetryAttempts(cfg.Exchanges.RetryAttempts))

	start, end, err := resolveDates(opts.start, opts.end, opts.days, time.Now().In(factory.Location()))
	if err != nil {
		return err
	}

	result, err := query.NewService(factory, logger).QueryAll(ctx, query.Request{
		Symbol:         opts.symbol,
		StartDate:      start,
		EndDate:        end,
		Accounts:       accounts,
		ExchangeFilter: opts.exchange,
	}, func(res models.AccountQueryResult) {
		if res.Success {
			logger.Info("Account finished", zap.String("account", res.AccountName), zap.Int("trades", res.Count))
			return
		}
		logger.Warn("Account failed", zap.String("account", res.AccountName), zap.String("reason", res.Error))
	})
	if err != nil {
		return err
	}
	logger.Info(result.Message)
	if !result.Success {
		return errors.New(result.Message)
	}

	analysis, err := calculator.NewAnalyzer(logger).Analyze(result.Trades)
	if err != nil {
		return fmt.Errorf("%s %s..%s: %w", result.Symbol, start, end, err)
	}

	now := time.Now().In(factory.Location())
	out := opts.out
	if out == "" {
		out = report.Filename(result.Symbol, now)
	}
	if err := writeReport(out, result.Symbol, analysis, result.Trades, now); err != nil {
		return err
	}
	logger.Info("Report written", zap.String("path", out), zap.Int("trades", len(result.Trades)))

	if opts.dumpJSON {
		jsonPath := strings.TrimSuffix(out, ".csv") + ".json"
		if err := writeJSON(jsonPath, result.Trades); err != nil {
			return err
		}
		logger.Info("Trades written", zap.String("path", jsonPath))
	}
	return nil
}

func writeReport(path, symbol string, analysis *calculator.TradeAnalysis, trades []models.Trade, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.WriteCSV(f, symbol, analysis, trades, now); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, trades []models.Trade) error {
	data, err := json.MarshalIndent(trades, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding trades: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
