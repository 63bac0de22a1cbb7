package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/airframesio/data-comparer/cmd/comparator"
	"github.com/airframesio/data-comparer/cmd/dataset"
	"github.com/airframesio/data-comparer/cmd/loaders"
)

type stubLoader struct {
	name string
	data *dataset.Dataset
	err  error
}

func (s *stubLoader) Load(context.Context) (*dataset.Dataset, error) {
	return s.data, s.err
}

func (s *stubLoader) Describe() string {
	return s.name
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestComparerRun(t *testing.T) {
	t.Run("files from config", func(t *testing.T) {
		leftPath := writeCSV(t, "left.csv", "id,name,amount\n1,a,10\n2,b,20\n3,c,30\n")
		rightPath := writeCSV(t, "right.csv", "amount,id,name\n10,1,a\n21,2,b\n30,3,c\n")

		config := validCompareConfig()
		config.Left.Path = leftPath
		config.Right.Path = rightPath
		config.Keys = []string{"id"}
		config.IgnoreColumnOrder = true

		comparer, err := newComparerFromConfig(config, testLogger())
		if err != nil {
			t.Fatalf("newComparerFromConfig failed: %v", err)
		}

		var phases []Phase
		comparer.onPhase = func(p Phase, _ string) { phases = append(phases, p) }

		report, err := comparer.Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if report.Mode != comparator.ModeKeyed {
			t.Errorf("expected keyed mode, got %s", report.Mode)
		}
		if !report.ColumnsEqual || !report.RowCountEqual {
			t.Error("expected equal columns and row counts")
		}
		if report.DataEqual {
			t.Fatal("expected a data difference")
		}
		diff := report.Differences.KeyedDiff
		if diff == nil || diff.MismatchedRowsCount != 1 {
			t.Fatalf("expected one mismatched row, got %+v", diff)
		}
		if got := diff.MismatchedRowsSample[0].Columns; len(got) != 1 || got[0] != "amount" {
			t.Errorf("unexpected mismatched columns %v", got)
		}

		expected := []Phase{PhaseLoadingLeft, PhaseLoadingRight, PhaseComparing, PhaseComplete}
		if len(phases) != len(expected) {
			t.Fatalf("phases = %v, want %v", phases, expected)
		}
		for i := range expected {
			if phases[i] != expected[i] {
				t.Errorf("phase %d = %v, want %v", i, phases[i], expected[i])
			}
		}

		env := comparer.envelope(report)
		if env.Left != leftPath || env.Right != rightPath {
			t.Errorf("envelope sources = %s, %s", env.Left, env.Right)
		}
		if len(env.Options.Keys) != 1 || env.Options.Keys[0] != "id" {
			t.Errorf("envelope keys = %v", env.Options.Keys)
		}
	})

	t.Run("equal unkeyed", func(t *testing.T) {
		left := &stubLoader{name: "l", data: dataset.New("a").Append(dataset.Int(1)).Append(dataset.Int(1))}
		right := &stubLoader{name: "r", data: dataset.New("a").Append(dataset.Int(1)).Append(dataset.Int(1))}

		report, err := NewComparer(validCompareConfig(), left, right, testLogger()).Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if report.HasDifferences() {
			t.Errorf("expected no differences, got %+v", report)
		}
	})
}

func TestComparerErrors(t *testing.T) {
	ok := &stubLoader{name: "ok", data: dataset.New("a")}

	t.Run("load error names the side", func(t *testing.T) {
		loadErr := errors.New("connection refused")
		failing := &stubLoader{name: "bad", err: loadErr}

		_, err := NewComparer(validCompareConfig(), ok, failing, testLogger()).Run(context.Background())
		if !errors.Is(err, loadErr) {
			t.Fatalf("expected wrapped load error, got %v", err)
		}
		if !strings.Contains(err.Error(), "failed to load right source") {
			t.Errorf("error should name the side: %v", err)
		}
	})

	t.Run("cancellation is not wrapped", func(t *testing.T) {
		canceled := &stubLoader{name: "slow", err: context.Canceled}

		_, err := NewComparer(validCompareConfig(), canceled, ok, testLogger()).Run(context.Background())
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("canceled before compare", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewComparer(validCompareConfig(), ok, ok, testLogger()).Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		config := validCompareConfig()
		config.SampleSize = -1

		_, err := NewComparer(config, ok, ok, testLogger()).Run(context.Background())
		if err == nil || !strings.Contains(err.Error(), "comparison failed") {
			t.Fatalf("expected comparison error, got %v", err)
		}
	})
}

func TestNewLoader(t *testing.T) {
	tests := []struct {
		name     string
		source   SourceConfig
		describe string
	}{
		{
			name:     "file",
			source:   SourceConfig{Type: SourceTypeFile, Path: "data/left.csv.gz", Delimiter: ";"},
			describe: "data/left.csv.gz",
		},
		{
			name:     "s3 uri",
			source:   SourceConfig{Type: SourceTypeS3, Path: "s3://exports/2024/left.parquet", S3: S3Config{Region: regionAuto}},
			describe: "s3://exports/2024/left.parquet",
		},
		{
			name:     "s3 bucket and key",
			source:   SourceConfig{Type: SourceTypeS3, Path: "left.jsonl", S3: S3Config{Bucket: "exports", Endpoint: "http://localhost:9000"}},
			describe: "s3://exports/left.jsonl",
		},
		{
			name:     "postgres",
			source:   SourceConfig{Type: SourceTypeSQL, ConnString: "postgres://app:secret@db/sales", Table: "orders"},
			describe: "postgres",
		},
		{
			name:     "sqlserver",
			source:   SourceConfig{Type: SourceTypeSQLServer, Host: "mssql", Port: 1433, Database: "sales", User: "sa", Password: "pw", Table: "dbo.orders"},
			describe: "sqlserver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := newLoader(tt.source, testLogger())
			if err != nil {
				t.Fatalf("newLoader failed: %v", err)
			}
			if loader == nil {
				t.Fatal("newLoader returned nil")
			}
			got := loader.Describe()
			if !strings.HasPrefix(got, tt.describe) {
				t.Errorf("Describe() = %s, want prefix %s", got, tt.describe)
			}
			if strings.Contains(got, "secret") || strings.Contains(got, ":pw@") {
				t.Errorf("Describe() leaks a password: %s", got)
			}
		})
	}

	t.Run("file loader type", func(t *testing.T) {
		loader, err := newLoader(SourceConfig{Type: SourceTypeFile, Path: "x.csv"}, testLogger())
		if err != nil {
			t.Fatalf("newLoader failed: %v", err)
		}
		if _, ok := loader.(*loaders.FileLoader); !ok {
			t.Errorf("expected *loaders.FileLoader, got %T", loader)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		loader, err := newLoader(SourceConfig{Type: "ftp"}, testLogger())
		if !errors.Is(err, ErrSourceTypeInvalid) {
			t.Fatalf("expected ErrSourceTypeInvalid, got %v", err)
		}
		if loader != nil {
			t.Error("loader should be nil on error")
		}
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := newLoader(SourceConfig{Type: SourceTypeSQL, ConnString: "oracle://db", Query: "SELECT 1"}, testLogger())
		if !errors.Is(err, loaders.ErrUnsupportedScheme) {
			t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
		}
	})
}

func TestSQLOptions(t *testing.T) {
	source := SourceConfig{Table: "orders", MaxRetries: 2, RetryDelay: 3, QueryTimeout: 30}
	opts := source.sqlOptions("postgres://db/x", loaders.DriverPostgres)

	if opts.Query != loaders.TableQuery(loaders.DriverPostgres, "orders") {
		t.Errorf("unexpected query %q", opts.Query)
	}
	if opts.MaxRetries != 2 || opts.RetryDelay.Seconds() != 3 || opts.Timeout.Seconds() != 30 {
		t.Errorf("unexpected retry settings %+v", opts)
	}

	source.Query = "SELECT id FROM orders"
	if got := source.sqlOptions("postgres://db/x", loaders.DriverPostgres).Query; got != source.Query {
		t.Errorf("explicit query should win, got %q", got)
	}
}

func TestResolveCompareConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("compare.left.type", "file")
	viper.Set("compare.left.path", "from-config.csv")
	viper.Set("compare.left.s3.bucket", "config-bucket")
	viper.Set("compare.sample_size", 7)
	viper.Set("compare.keys", "id, region")

	flags := pflag.NewFlagSet("compare", pflag.ContinueOnError)
	leftFlags.register(flags, "left")
	rightFlags.register(flags, "right")
	if err := flags.Parse([]string{"--left-path=from-flag.csv", "--right-type=sql", "--right-port=1500"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}

	config := resolveCompareConfig(flags)

	if config.Left.Type != "file" {
		t.Errorf("Left.Type = %s, want value from config", config.Left.Type)
	}
	if config.Left.Path != "from-flag.csv" {
		t.Errorf("Left.Path = %s, changed flag should win", config.Left.Path)
	}
	if config.Left.S3.Bucket != "config-bucket" {
		t.Errorf("Left.S3.Bucket = %s, want nested config value", config.Left.S3.Bucket)
	}
	if config.Right.Type != "sql" || config.Right.Port != 1500 {
		t.Errorf("Right = %s:%d, want flag values", config.Right.Type, config.Right.Port)
	}
	if config.Left.Port != 1433 || config.Left.Delimiter != "," || config.Left.S3.Region != regionAuto {
		t.Errorf("unexpected defaults %+v", config.Left)
	}
	if config.SampleSize != 7 {
		t.Errorf("SampleSize = %d, want 7", config.SampleSize)
	}
	if len(config.Keys) != 2 || config.Keys[1] != "region" {
		t.Errorf("Keys = %v", config.Keys)
	}
}

func TestDescribeSource(t *testing.T) {
	tests := []struct {
		source   SourceConfig
		expected string
	}{
		{SourceConfig{Type: SourceTypeFile, Path: "a.csv"}, "file a.csv"},
		{SourceConfig{Type: SourceTypeS3, Path: "s3://b/k.csv"}, "s3://b/k.csv"},
		{SourceConfig{Type: SourceTypeS3, Path: "k.csv", S3: S3Config{Bucket: "b"}}, "s3://b/k.csv"},
		{SourceConfig{Type: SourceTypeSQL, ConnString: "postgres://u:p@h/db", Table: "t"}, "postgres table t"},
		{SourceConfig{Type: SourceTypeSQL, ConnString: "mysql://u:p@tcp(h)/db", Query: "SELECT 1"}, "mysql query"},
		{SourceConfig{Type: SourceTypeSQL, ConnString: "nope"}, "sql (invalid connection string)"},
		{SourceConfig{Type: SourceTypeSQLServer, Host: "h", Database: "db", Table: "t"}, "sqlserver h/db t"},
		{SourceConfig{}, "(not set)"},
	}

	for _, tt := range tests {
		if got := describeSource(tt.source); got != tt.expected {
			t.Errorf("describeSource(%+v) = %q, want %q", tt.source, got, tt.expected)
		}
	}
}
