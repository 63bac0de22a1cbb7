package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/airframesio/data-comparer/cmd/comparator"
	"github.com/airframesio/data-comparer/cmd/dataset"
	"github.com/airframesio/data-comparer/cmd/loaders"
)

// exitDifferences is returned with --fail-on-diff when the datasets differ
const exitDifferences = 2

// sourceFlags holds the flag values of one side
type sourceFlags struct {
	typ          string
	path         string
	format       string
	compression  string
	delimiter    string
	nullValues   []string
	asText       bool
	conn         string
	query        string
	table        string
	host         string
	port         int
	database     string
	user         string
	password     string
	maxRetries   int
	retryDelay   int
	queryTimeout int
	s3Endpoint   string
	s3Bucket     string
	s3AccessKey  string
	s3SecretKey  string
	s3Region     string
}

var (
	leftFlags  sourceFlags
	rightFlags sourceFlags

	// Comparison flags
	compareKeys          string // comma-separated key columns
	compareFloatTol      float64
	compareSampleSize    int
	compareIgnoreColumns bool

	// Output flags
	compareOutputFormat     string // text, json
	compareOutputFile       string
	compareExportDir        string
	compareExportFormat     string
	compareExportCompressor string
	compareProgress         bool
	compareFailOnDiff       bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two datasets from files, S3 objects or SQL queries",
	Long: `Compare two tabular datasets. Without --keys rows are compared as multisets and
the report lists surplus rows on each side. With --keys rows are joined on the key
columns and the report lists keys missing on either side and rows whose values differ.`,
	Run: func(cmd *cobra.Command, _ []string) {
		runCompare(cmd)
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	leftFlags.register(compareCmd.Flags(), "left")
	rightFlags.register(compareCmd.Flags(), "right")

	// Comparison flags
	compareCmd.Flags().StringVar(&compareKeys, "keys", "", "Comma-separated key columns (empty = unkeyed comparison)")
	compareCmd.Flags().Float64Var(&compareFloatTol, "float-tol", 1e-9, "Float tolerance, values are rounded to the matching number of decimal places")
	compareCmd.Flags().IntVar(&compareSampleSize, "sample-size", 50, "Maximum number of sample rows per difference list")
	compareCmd.Flags().BoolVar(&compareIgnoreColumns, "ignore-column-order", true, "Compare columns by name regardless of their order")

	// Output flags
	compareCmd.Flags().StringVar(&compareOutputFormat, "output-format", "text", "Output format: text, json")
	compareCmd.Flags().StringVar(&compareOutputFile, "output-file", "", "Output file path (default: stdout)")
	compareCmd.Flags().StringVar(&compareExportDir, "export-dir", "", "Directory to write difference samples to (empty = no export)")
	compareCmd.Flags().StringVar(&compareExportFormat, "export-format", "csv", "Sample export format: csv, jsonl, parquet")
	compareCmd.Flags().StringVar(&compareExportCompressor, "export-compression", "none", "Sample export compression: zstd, lz4, gzip, none")
	compareCmd.Flags().BoolVar(&compareProgress, "progress", false, "Show an interactive progress view while loading and comparing")
	compareCmd.Flags().BoolVar(&compareFailOnDiff, "fail-on-diff", false, "Exit with status 2 when the datasets differ")
}

func (f *sourceFlags) register(flags *pflag.FlagSet, side string) {
	title := strings.ToUpper(side[:1]) + side[1:]
	flags.StringVar(&f.typ, side+"-type", "", title+" source type: file, s3, sql, sqlserver (required)")
	flags.StringVar(&f.path, side+"-path", "", title+" file path, S3 key or s3://bucket/key URI")
	flags.StringVar(&f.format, side+"-format", "", title+" file format: csv, jsonl, parquet (default: from extension)")
	flags.StringVar(&f.compression, side+"-compression", "", title+" file compression: zstd, lz4, gzip, none (default: from extension)")
	flags.StringVar(&f.delimiter, side+"-delimiter", ",", title+" CSV delimiter (a single character or \\t)")
	flags.StringSliceVar(&f.nullValues, side+"-null-values", nil, title+" CSV cell values read as null (default: empty, NA, N/A, NULL, NaN, None and similar)")
	flags.BoolVar(&f.asText, side+"-as-text", false, title+" load every column as text")
	flags.StringVar(&f.conn, side+"-conn", "", title+" connection string: postgres://, cockroachdb://, mysql://, sqlserver://, snowflake://")
	flags.StringVar(&f.query, side+"-query", "", title+" SQL query")
	flags.StringVar(&f.table, side+"-table", "", title+" table to read in full (instead of --"+side+"-query)")
	flags.StringVar(&f.host, side+"-host", "", title+" SQL Server host")
	flags.IntVar(&f.port, side+"-port", 1433, title+" SQL Server port")
	flags.StringVar(&f.database, side+"-database", "", title+" SQL Server database")
	flags.StringVar(&f.user, side+"-user", "", title+" SQL Server user")
	flags.StringVar(&f.password, side+"-password", "", title+" SQL Server password")
	flags.IntVar(&f.maxRetries, side+"-max-retries", 3, title+" maximum retry attempts on connection errors")
	flags.IntVar(&f.retryDelay, side+"-retry-delay", 5, title+" delay in seconds between retry attempts")
	flags.IntVar(&f.queryTimeout, side+"-query-timeout", 0, title+" query timeout in seconds (0 = no timeout)")
	flags.StringVar(&f.s3Endpoint, side+"-s3-endpoint", "", title+" S3-compatible endpoint URL")
	flags.StringVar(&f.s3Bucket, side+"-s3-bucket", "", title+" S3 bucket")
	flags.StringVar(&f.s3AccessKey, side+"-s3-access-key", "", title+" S3 access key")
	flags.StringVar(&f.s3SecretKey, side+"-s3-secret-key", "", title+" S3 secret key")
	flags.StringVar(&f.s3Region, side+"-s3-region", regionAuto, title+" S3 region")
}

// configResolver picks a value from a changed flag, then viper, then the flag default
type configResolver struct {
	flags *pflag.FlagSet
}

func (r configResolver) changed(flagName string) bool {
	flag := r.flags.Lookup(flagName)
	return flag != nil && flag.Changed
}

func (r configResolver) str(flagValue, flagName, viperKey string) string {
	if r.changed(flagName) {
		return flagValue
	}
	if viperValue := viper.GetString(viperKey); viperValue != "" {
		return viperValue
	}
	return flagValue
}

func (r configResolver) integer(flagValue int, flagName, viperKey string) int {
	if r.changed(flagName) || !viper.IsSet(viperKey) {
		return flagValue
	}
	return viper.GetInt(viperKey)
}

func (r configResolver) float(flagValue float64, flagName, viperKey string) float64 {
	if r.changed(flagName) || !viper.IsSet(viperKey) {
		return flagValue
	}
	return viper.GetFloat64(viperKey)
}

func (r configResolver) boolean(flagValue bool, flagName, viperKey string) bool {
	if r.changed(flagName) || !viper.IsSet(viperKey) {
		return flagValue
	}
	return viper.GetBool(viperKey)
}

func (r configResolver) stringSlice(flagValue []string, flagName, viperKey string) []string {
	if r.changed(flagName) || !viper.IsSet(viperKey) {
		return flagValue
	}
	return viper.GetStringSlice(viperKey)
}

func (r configResolver) source(f *sourceFlags, side string) SourceConfig {
	key := "compare." + side + "."
	return SourceConfig{
		Type:         r.str(f.typ, side+"-type", key+"type"),
		Path:         r.str(f.path, side+"-path", key+"path"),
		Format:       r.str(f.format, side+"-format", key+"format"),
		Compression:  r.str(f.compression, side+"-compression", key+"compression"),
		Delimiter:    r.str(f.delimiter, side+"-delimiter", key+"delimiter"),
		NullValues:   r.stringSlice(f.nullValues, side+"-null-values", key+"null_values"),
		AsText:       r.boolean(f.asText, side+"-as-text", key+"as_text"),
		ConnString:   r.str(f.conn, side+"-conn", key+"conn"),
		Query:        r.str(f.query, side+"-query", key+"query"),
		Table:        r.str(f.table, side+"-table", key+"table"),
		Host:         r.str(f.host, side+"-host", key+"host"),
		Port:         r.integer(f.port, side+"-port", key+"port"),
		Database:     r.str(f.database, side+"-database", key+"database"),
		User:         r.str(f.user, side+"-user", key+"user"),
		Password:     r.str(f.password, side+"-password", key+"password"),
		MaxRetries:   r.integer(f.maxRetries, side+"-max-retries", key+"max_retries"),
		RetryDelay:   r.integer(f.retryDelay, side+"-retry-delay", key+"retry_delay"),
		QueryTimeout: r.integer(f.queryTimeout, side+"-query-timeout", key+"query_timeout"),
		S3: S3Config{
			Endpoint:  r.str(f.s3Endpoint, side+"-s3-endpoint", key+"s3.endpoint"),
			Bucket:    r.str(f.s3Bucket, side+"-s3-bucket", key+"s3.bucket"),
			AccessKey: r.str(f.s3AccessKey, side+"-s3-access-key", key+"s3.access_key"),
			SecretKey: r.str(f.s3SecretKey, side+"-s3-secret-key", key+"s3.secret_key"),
			Region:    r.str(f.s3Region, side+"-s3-region", key+"s3.region"),
		},
	}
}

// resolveCompareConfig merges flags with the config file and environment
func resolveCompareConfig(flags *pflag.FlagSet) *CompareConfig {
	r := configResolver{flags: flags}
	return &CompareConfig{
		Debug:             viper.GetBool("debug"),
		LogFormat:         viper.GetString("log_format"),
		Left:              r.source(&leftFlags, "left"),
		Right:             r.source(&rightFlags, "right"),
		Keys:              splitKeys(r.str(compareKeys, "keys", "compare.keys")),
		FloatTol:          r.float(compareFloatTol, "float-tol", "compare.float_tol"),
		SampleSize:        r.integer(compareSampleSize, "sample-size", "compare.sample_size"),
		IgnoreColumnOrder: r.boolean(compareIgnoreColumns, "ignore-column-order", "compare.ignore_column_order"),
		OutputFormat:      r.str(compareOutputFormat, "output-format", "compare.output_format"),
		OutputFile:        r.str(compareOutputFile, "output-file", "compare.output_file"),
		ExportDir:         r.str(compareExportDir, "export-dir", "compare.export_dir"),
		ExportFormat:      r.str(compareExportFormat, "export-format", "compare.export_format"),
		ExportCompression: r.str(compareExportCompressor, "export-compression", "compare.export_compression"),
		Progress:          r.boolean(compareProgress, "progress", "compare.progress"),
		FailOnDiff:        r.boolean(compareFailOnDiff, "fail-on-diff", "compare.fail_on_diff"),
	}
}

// splitKeys parses a comma-separated key list; empty entries are kept so
// that validation can reject them
func splitKeys(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	keys := strings.Split(s, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	return keys
}

func runCompare(cmd *cobra.Command) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n❌ PANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	config := resolveCompareConfig(cmd.Flags())

	// Initialize logger
	initLogger(config.Debug, config.LogFormat)

	logger.Info("")
	logger.Info(fmt.Sprintf("🔍 Data Comparer v%s", Version))
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	printCompareConfig(config)

	logger.Debug("Validating configuration...")
	if err := config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("❌ Configuration error: %s", err.Error()))
		os.Exit(1)
	}
	logger.Debug("Configuration validated successfully")

	ctx := signalContext
	if ctx == nil {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	// Give the version check a short time to complete, but don't block startup
	select {
	case <-startVersionCheck(ctx, newVersionChecker()):
	case <-time.After(2 * time.Second):
		logger.Debug("Version check taking longer than expected, continuing...")
	}

	var (
		report *comparator.Report
		env    *reportEnvelope
		err    error
	)
	if config.Progress {
		report, env, err = runWithProgress(ctx, config)
	} else {
		report, env, err = runPlain(ctx, config, logger)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("")
			logger.Info("⚠️  Comparison cancelled by user")
			os.Exit(130)
		}
		logger.Error(fmt.Sprintf("❌ Comparison failed: %s", err.Error()))
		os.Exit(1)
	}

	if err := writeOutput(config, env); err != nil {
		logger.Error(fmt.Sprintf("❌ Failed to write report: %s", err.Error()))
		os.Exit(1)
	}

	if config.ExportDir != "" {
		written, err := exportSamples(config.ExportDir, config.ExportFormat, config.ExportCompression, report)
		if err != nil {
			logger.Error(fmt.Sprintf("❌ Failed to export samples: %s", err.Error()))
			os.Exit(1)
		}
		for _, file := range written {
			logger.Info(fmt.Sprintf("📁 Exported %s (%s)", file.Path, formatBytes(file.Size)))
		}
	}

	logger.Info("")
	if report.HasDifferences() {
		logger.Info("⚠️  Datasets differ")
		if config.FailOnDiff {
			os.Exit(exitDifferences)
		}
		return
	}
	logger.Info("✅ Datasets are equal")
}

// runPlain loads and compares with log output only
func runPlain(ctx context.Context, config *CompareConfig, log *slog.Logger) (*comparator.Report, *reportEnvelope, error) {
	comparer, err := newComparerFromConfig(config, log)
	if err != nil {
		return nil, nil, err
	}
	report, err := comparer.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	return report, comparer.envelope(report), nil
}

// runWithProgress runs the comparison behind the bubbletea view. Log
// records are shown inside the view instead of on stderr.
func runWithProgress(ctx context.Context, config *CompareConfig) (*comparator.Report, *reportEnvelope, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	viewLogger := slog.New(newBroadcastLogHandler(
		newLogHandler(io.Discard, config.Debug, "text"),
		func(msg string) {
			if program != nil {
				program.Send(messageMsg(strings.TrimSpace(msg)))
			}
		},
	))

	comparer, err := newComparerFromConfig(config, viewLogger)
	if err != nil {
		return nil, nil, err
	}
	program = tea.NewProgram(newProgressModel(comparer.left.Describe(), comparer.right.Describe()), tea.WithOutput(os.Stderr))
	comparer.onPhase = func(phase Phase, message string) {
		program.Send(phaseMsg{phase: phase, message: message})
	}

	type outcome struct {
		report *comparator.Report
		err    error
	}
	result := make(chan outcome, 1)
	go func() {
		report, err := comparer.Run(ctx)
		result <- outcome{report: report, err: err}
		program.Send(doneMsg{err: err})
	}()

	final, err := program.Run()
	if err != nil {
		cancel()
		<-result
		return nil, nil, fmt.Errorf("progress view failed: %w", err)
	}
	if m, ok := final.(progressModel); ok && m.canceled {
		cancel()
		<-result
		return nil, nil, context.Canceled
	}

	out := <-result
	if out.err != nil {
		return nil, nil, out.err
	}
	return out.report, comparer.envelope(out.report), nil
}

// printCompareConfig prints a table of configuration information
func printCompareConfig(config *CompareConfig) {
	logger.Info("")
	logger.Info("📋 Configuration:")
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Info(fmt.Sprintf("  Left:           %s", describeSource(config.Left)))
	logger.Info(fmt.Sprintf("  Right:          %s", describeSource(config.Right)))
	if len(config.Keys) > 0 {
		logger.Info(fmt.Sprintf("  Mode:           keyed on %s", strings.Join(config.Keys, ", ")))
	} else {
		logger.Info("  Mode:           unkeyed (row multisets)")
	}
	logger.Info(fmt.Sprintf("  Float tol:      %g", config.FloatTol))
	logger.Info(fmt.Sprintf("  Sample size:    %d", config.SampleSize))
	logger.Info(fmt.Sprintf("  Output:         %s", config.OutputFormat))
	if config.ExportDir != "" {
		logger.Info(fmt.Sprintf("  Export:         %s (%s, %s)", config.ExportDir, config.ExportFormat, config.ExportCompression))
	}
	logger.Info("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// describeSource summarizes a source without secrets
func describeSource(src SourceConfig) string {
	switch src.Type {
	case SourceTypeFile:
		return "file " + src.Path
	case SourceTypeS3:
		if strings.HasPrefix(src.Path, "s3://") {
			return src.Path
		}
		return fmt.Sprintf("s3://%s/%s", src.S3.Bucket, src.Path)
	case SourceTypeSQL:
		driver, _, err := loaders.ParseConnString(src.ConnString)
		if err != nil {
			return "sql (invalid connection string)"
		}
		if src.Table != "" {
			return fmt.Sprintf("%s table %s", driver, src.Table)
		}
		return driver + " query"
	case SourceTypeSQLServer:
		target := src.Table
		if target == "" {
			target = "query"
		}
		return fmt.Sprintf("sqlserver %s/%s %s", src.Host, src.Database, target)
	default:
		return "(not set)"
	}
}

// Comparer loads both sides and compares them
type Comparer struct {
	config  *CompareConfig
	left    loaders.Loader
	right   loaders.Loader
	logger  *slog.Logger
	onPhase func(Phase, string)
}

func NewComparer(config *CompareConfig, left, right loaders.Loader, logger *slog.Logger) *Comparer {
	return &Comparer{
		config: config,
		left:   left,
		right:  right,
		logger: logger,
	}
}

func newComparerFromConfig(config *CompareConfig, log *slog.Logger) (*Comparer, error) {
	left, err := newLoader(config.Left, log)
	if err != nil {
		return nil, fmt.Errorf("left source: %w", err)
	}
	right, err := newLoader(config.Right, log)
	if err != nil {
		return nil, fmt.Errorf("right source: %w", err)
	}
	return NewComparer(config, left, right, log), nil
}

func (c *Comparer) phase(p Phase, message string) {
	c.logger.Debug(message)
	if c.onPhase != nil {
		c.onPhase(p, message)
	}
}

// Run loads the left side, then the right side, and compares them
func (c *Comparer) Run(ctx context.Context) (*comparator.Report, error) {
	c.phase(PhaseLoadingLeft, fmt.Sprintf("Loading left: %s", c.left.Describe()))
	left, err := c.load(ctx, c.left, "left")
	if err != nil {
		return nil, err
	}

	c.phase(PhaseLoadingRight, fmt.Sprintf("Loading right: %s", c.right.Describe()))
	right, err := c.load(ctx, c.right, "right")
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.phase(PhaseComparing, fmt.Sprintf("Comparing %d rows with %d rows", left.Len(), right.Len()))
	report, err := comparator.Compare(left, right, c.config.options())
	if err != nil {
		return nil, fmt.Errorf("comparison failed: %w", err)
	}

	c.phase(PhaseComplete, "Comparison complete")
	c.logger.Info(fmt.Sprintf("✅ Compared %d left rows with %d right rows (%s mode)", report.LeftCount, report.RightCount, report.Mode))
	return report, nil
}

func (c *Comparer) load(ctx context.Context, loader loaders.Loader, side string) (*dataset.Dataset, error) {
	d, err := loader.Load(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load %s source: %w", side, err)
	}
	c.logger.Info(fmt.Sprintf("📥 Loaded %s: %d rows, %d columns", side, d.Len(), len(d.Columns)))
	for i, row := range d.Head(3) {
		c.logger.Debug(fmt.Sprintf("  %s row %d: %s", side, i+1, formatRow(row, d.Columns)))
	}
	return d, nil
}

func (c *Comparer) envelope(report *comparator.Report) *reportEnvelope {
	return newReportEnvelope(report, c.left.Describe(), c.right.Describe(), c.config.options())
}
