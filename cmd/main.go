package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/PDOK/bucket-usage-auditor/internal/agg"
	"github.com/PDOK/bucket-usage-auditor/internal/b2"
	"github.com/PDOK/bucket-usage-auditor/internal/du"
	"github.com/PDOK/bucket-usage-auditor/internal/logger"
	"github.com/PDOK/bucket-usage-auditor/internal/metrics"
	"github.com/PDOK/bucket-usage-auditor/internal/report"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

const (
	providerB2    = "b2"
	providerAzure = "azure"

	verboseFlag  = "verbose"
	outputFlag   = "output"
	versionsFlag = "versions"
	providerFlag = "provider"
	configFlag   = "config"
	logLevelFlag = "log-level"
)

// flags that only get a value in their --name=value form, so a bare one never swallows the bucket name
var inlineValueOnly = []string{outputFlag, versionsFlag}

var (
	cliFlags = []cli.Flag{
		&cli.BoolFlag{
			Name:  verboseFlag,
			Usage: "log every counted file with its size",
		},
		&cli.StringFlag{
			Name:  outputFlag,
			Usage: "output format: text, json or csv (anything else means text)",
			Value: string(report.Text),
		},
		&cli.StringFlag{
			Name:  versionsFlag,
			Usage: "count every stored file version; only 'false' restricts the audit to current files",
			Value: "true",
		},
		&cli.StringFlag{
			Name:  providerFlag,
			Usage: "storage provider: b2 (B2_APPLICATION_KEY_ID, B2_APPLICATION_KEY) or azure (AZURE_STORAGE_CONNECTION_STRING)",
			Value: providerB2,
		},
		&cli.StringFlag{
			Name:  configFlag,
			Usage: "optional yaml config file with b2 api, metrics push, labels and rules settings",
		},
		&cli.StringFlag{
			Name:    logLevelFlag,
			Usage:   "log level (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
)

type auditOptions struct {
	bucket          string
	prefix          string
	includeVersions bool
	verbose         bool
	format          report.Format
}

func main() {
	err := newApp().Run(reorderArgs(os.Args))
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("audit failed")
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "bucket-usage-auditor"
	app.Usage = "Audit storage usage of a bucket, per folder"
	app.ArgsUsage = "<bucket-name> [folder-prefix/]"
	app.HideHelpCommand = true
	app.Flags = cliFlags
	app.Action = run
	return app
}

func run(c *cli.Context) error {
	logger.SetLevel(c.String(logLevelFlag))
	if err := loadEnvFile(); err != nil {
		return err
	}

	opts, ok := parseAuditOptions(c)
	if !ok {
		_ = cli.ShowAppHelp(c)
		return cli.Exit("", 1)
	}
	config, err := loadConfig(c.String(configFlag))
	if err != nil {
		return err
	}

	ctx := context.Background()
	storage, err := newStorage(ctx, c.String(providerFlag), config)
	if err != nil {
		return err
	}
	return audit(ctx, storage, config, opts, c.App.Writer)
}

func parseAuditOptions(c *cli.Context) (auditOptions, bool) {
	bucket := c.Args().Get(0)
	if bucket == "" {
		return auditOptions{}, false
	}
	opts := auditOptions{
		bucket:          bucket,
		includeVersions: c.String(versionsFlag) != "false",
		verbose:         c.Bool(verboseFlag),
		format:          report.ParseFormat(c.String(outputFlag)),
	}
	if prefix := c.Args().Get(1); !strings.HasPrefix(prefix, "--") {
		opts.prefix = prefix
	}
	return opts, true
}

func newStorage(ctx context.Context, provider string, config *Config) (du.Storage, error) {
	switch provider {
	case providerB2:
		var creds b2Credentials
		if err := env.Parse(&creds); err != nil {
			return nil, fmt.Errorf("b2 credentials: %w", err)
		}
		return du.NewB2Lister(ctx, b2.NewClient(config.B2), creds.KeyID, creds.ApplicationKey)
	case providerAzure:
		var creds azureCredentials
		if err := env.Parse(&creds); err != nil {
			return nil, fmt.Errorf("azure credentials: %w", err)
		}
		return du.NewAzureBlobLister(creds.ConnectionString)
	default:
		return nil, cli.Exit(fmt.Sprintf("unknown provider %q, expected %s or %s", provider, providerB2, providerAzure), 1)
	}
}

// audit resolves the bucket, scans it and writes the report to out.
// Usage metrics are pushed afterwards when a pushgateway is configured.
func audit(ctx context.Context, storage du.Storage, config *Config, opts auditOptions, out io.Writer) error {
	scanID := uuid.New().String()
	log := logger.Log.With().Str("scan_id", scanID).Str("bucket", opts.bucket).Logger()
	start := time.Now()

	bucket, err := storage.ResolveBucket(ctx, opts.bucket)
	if err != nil {
		if errors.Is(err, du.ErrBucketNotFound) {
			return cli.Exit(fmt.Sprintf("bucket %q not found", opts.bucket), 1)
		}
		return err
	}

	scanOpts := du.ScanOptions{Prefix: opts.prefix, IncludeVersions: opts.includeVersions}
	if opts.verbose {
		scanOpts.Progress = func(entry du.Entry) {
			log.Info().Int64("bytes", entry.Size).Msgf("%s (%s)", entry.Path, report.FormatBytes(entry.Size))
		}
	}
	log.Info().Str("prefix", opts.prefix).Bool("versions", opts.includeVersions).Msg("start scanning")
	result, err := du.Scan(ctx, storage, bucket, scanOpts)
	if err != nil {
		return err
	}
	log.Info().Int("folders", len(result.Folders)).Int64("files", result.TotalFiles).Msg("done scanning")

	err = report.Write(out, opts.format, report.Report{
		ScanID:  scanID,
		Bucket:  opts.bucket,
		Prefix:  opts.prefix,
		Result:  result,
		Elapsed: time.Since(start),
	})
	if err != nil {
		return err
	}

	if !config.Metrics.Enabled() {
		return nil
	}
	aggregator, err := agg.NewAggregator(config.Labels, config.Rules)
	if err != nil {
		return err
	}
	updater := metrics.NewUpdater(aggregator, config.Metrics)
	updater.Update(opts.bucket, result.Folders, start)
	return updater.Push(ctx)
}

// reorderArgs moves flags in front of the positional arguments, so flags may be given anywhere.
// Unknown flags are dropped, as are output and versions flags without an inline =value.
func reorderArgs(args []string) []string {
	if len(args) < 2 {
		return args
	}
	var flags, positionals []string
	terminated := false
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if arg == "--" {
			positionals = append(positionals, rest[i+1:]...)
			terminated = true
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}
		name, _, inline := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		flag := lookupFlag(name)
		switch {
		case flag == nil:
			logger.Log.Warn().Str("flag", arg).Msg("ignoring unknown flag")
		case inline || !takesValue(flag):
			flags = append(flags, arg)
		case slices.Contains(inlineValueOnly, name):
			logger.Log.Warn().Str("flag", arg).Msgf("ignoring flag without value, use --%s=<value>", name)
		case i+1 < len(rest):
			flags = append(flags, arg, rest[i+1])
			i++
		default:
			logger.Log.Warn().Str("flag", arg).Msg("ignoring flag without value")
		}
	}
	if terminated {
		flags = append(flags, "--")
	}
	return slices.Concat([]string{args[0]}, flags, positionals)
}

func lookupFlag(name string) cli.Flag {
	for _, flag := range cliFlags {
		if slices.Contains(flag.Names(), name) {
			return flag
		}
	}
	return nil
}

func takesValue(flag cli.Flag) bool {
	_, ok := flag.(*cli.StringFlag)
	return ok
}
