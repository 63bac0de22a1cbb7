package cmd

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/airframesio/data-comparer/cmd/comparator"
	"github.com/airframesio/data-comparer/cmd/compressors"
	"github.com/airframesio/data-comparer/cmd/formatters"
	"github.com/airframesio/data-comparer/cmd/loaders"
)

// Static errors for configuration validation
var (
	ErrSourceTypeRequired       = errors.New("source type is required")
	ErrSourceTypeInvalid        = errors.New("source type must be one of: file, s3, sql, sqlserver")
	ErrFilePathRequired         = errors.New("file path is required")
	ErrS3BucketRequired         = errors.New("S3 bucket is required (use --*-s3-bucket or an s3://bucket/key path)")
	ErrS3KeyRequired            = errors.New("S3 object key is required")
	ErrS3RegionInvalid          = errors.New("S3 region contains invalid characters or is too long")
	ErrS3SecretKeyRequired      = errors.New("S3 secret key is required when an access key is set")
	ErrConnStringRequired       = errors.New("connection string is required for sql sources")
	ErrHostRequired             = errors.New("host is required for sqlserver sources")
	ErrPortInvalid              = errors.New("port must be between 1 and 65535")
	ErrQueryRequired            = errors.New("query or table is required for database sources")
	ErrQueryAndTable            = errors.New("query and table are mutually exclusive")
	ErrTableNameInvalid         = errors.New("table name is invalid: must be identifiers separated by dots, each starting with a letter or underscore")
	ErrInputFormatInvalid       = errors.New("input format must be one of: csv, jsonl, parquet")
	ErrInputCompressionInvalid  = errors.New("input compression must be one of: zstd, lz4, gzip, none")
	ErrMaxRetriesInvalid        = errors.New("max retries must be >= 0")
	ErrRetryDelayInvalid        = errors.New("retry delay must be >= 0")
	ErrQueryTimeoutInvalid      = errors.New("query timeout must be >= 0")
	ErrKeyColumnsInvalid        = errors.New("key columns must be non-empty and unique")
	ErrFloatTolInvalid          = errors.New("float tolerance must be a finite number")
	ErrSampleSizeInvalid        = errors.New("sample size must be >= 0")
	ErrOutputFormatInvalid      = errors.New("output format must be one of: text, json")
	ErrExportFormatInvalid      = errors.New("export format must be one of: csv, jsonl, parquet")
	ErrExportCompressionInvalid = errors.New("export compression must be one of: zstd, lz4, gzip, none")
)

const (
	SourceTypeFile      = "file"
	SourceTypeS3        = "s3"
	SourceTypeSQL       = "sql"
	SourceTypeSQLServer = "sqlserver"

	regionAuto = "auto"
)

// CompareConfig is the resolved configuration of one compare run
type CompareConfig struct {
	Debug     bool
	LogFormat string
	Left      SourceConfig
	Right     SourceConfig

	Keys              []string
	FloatTol          float64
	SampleSize        int
	IgnoreColumnOrder bool

	OutputFormat      string // text, json
	OutputFile        string
	ExportDir         string // where samples are written, empty disables export
	ExportFormat      string
	ExportCompression string
	Progress          bool
	FailOnDiff        bool
}

// SourceConfig describes one side of the comparison
type SourceConfig struct {
	Type string

	// Path is a local file for file sources, and an object key or
	// s3://bucket/key URI for s3 sources
	Path        string
	Format      string // empty detects from the extension
	Compression string // empty detects from the suffix
	Delimiter   string
	NullValues  []string
	AsText      bool

	ConnString string
	Query      string
	Table      string // shorthand for SELECT * FROM table
	Host       string
	Port       int
	Database   string
	User       string
	Password   string

	MaxRetries   int
	RetryDelay   int // seconds between retry attempts
	QueryTimeout int // seconds, 0 = no timeout

	S3 S3Config
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// validTableName accepts optionally schema-qualified identifiers
var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*(\.[a-zA-Z_][a-zA-Z0-9_$]*){0,2}$`)

// isValidRegion validates that an S3 region is reasonable
func isValidRegion(region string) bool {
	if region == "" || len(region) > 50 {
		return false
	}
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, region)
	return matched
}

func isValidInputFormat(format string) bool {
	validFormats := map[string]bool{
		formatters.FormatCSV:     true,
		formatters.FormatJSONL:   true,
		formatters.FormatParquet: true,
	}
	return validFormats[format]
}

func isValidCompression(compression string) bool {
	_, err := compressors.Get(compression)
	return err == nil
}

func isValidOutputFormat(format string) bool {
	return format == "text" || format == "json"
}

// Validate checks both sources and the comparison options
func (c *CompareConfig) Validate() error {
	if err := c.Left.Validate(); err != nil {
		return fmt.Errorf("left source: %w", err)
	}
	if err := c.Right.Validate(); err != nil {
		return fmt.Errorf("right source: %w", err)
	}

	seen := make(map[string]bool, len(c.Keys))
	for _, k := range c.Keys {
		if k == "" || seen[k] {
			return fmt.Errorf("%w: %q", ErrKeyColumnsInvalid, strings.Join(c.Keys, ","))
		}
		seen[k] = true
	}

	if math.IsNaN(c.FloatTol) || math.IsInf(c.FloatTol, 0) {
		return fmt.Errorf("%w, got %v", ErrFloatTolInvalid, c.FloatTol)
	}
	if c.SampleSize < 0 {
		return fmt.Errorf("%w, got %d", ErrSampleSizeInvalid, c.SampleSize)
	}

	if !isValidOutputFormat(c.OutputFormat) {
		return fmt.Errorf("%w: '%s'", ErrOutputFormatInvalid, c.OutputFormat)
	}

	if c.ExportDir != "" {
		if !isValidInputFormat(c.ExportFormat) {
			return fmt.Errorf("%w: '%s'", ErrExportFormatInvalid, c.ExportFormat)
		}
		if !isValidCompression(c.ExportCompression) {
			return fmt.Errorf("%w: '%s'", ErrExportCompressionInvalid, c.ExportCompression)
		}
	}

	return nil
}

// Validate checks the settings required by the source type
func (s *SourceConfig) Validate() error {
	switch s.Type {
	case "":
		return ErrSourceTypeRequired
	case SourceTypeFile:
		if s.Path == "" {
			return ErrFilePathRequired
		}
		return s.validateDecoding()
	case SourceTypeS3:
		return s.validateS3()
	case SourceTypeSQL:
		if s.ConnString == "" {
			return ErrConnStringRequired
		}
		return s.validateQuery()
	case SourceTypeSQLServer:
		if s.Host == "" {
			return ErrHostRequired
		}
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("%w, got %d", ErrPortInvalid, s.Port)
		}
		return s.validateQuery()
	default:
		return fmt.Errorf("%w: '%s'", ErrSourceTypeInvalid, s.Type)
	}
}

func (s *SourceConfig) validateDecoding() error {
	if s.Format != "" && !isValidInputFormat(s.Format) {
		return fmt.Errorf("%w: '%s'", ErrInputFormatInvalid, s.Format)
	}
	if s.Compression != "" && !isValidCompression(s.Compression) {
		return fmt.Errorf("%w: '%s'", ErrInputCompressionInvalid, s.Compression)
	}
	if _, err := formatters.ParseDelimiter(s.Delimiter); err != nil {
		return err
	}
	return nil
}

func (s *SourceConfig) validateS3() error {
	bucket, key := s.S3.Bucket, s.Path
	if strings.HasPrefix(s.Path, "s3://") {
		var err error
		if bucket, key, err = loaders.ParseS3URI(s.Path); err != nil {
			return err
		}
	}
	if bucket == "" {
		return ErrS3BucketRequired
	}
	if key == "" {
		return ErrS3KeyRequired
	}
	if s.S3.Region != "" && s.S3.Region != regionAuto && !isValidRegion(s.S3.Region) {
		return fmt.Errorf("%w: %s", ErrS3RegionInvalid, s.S3.Region)
	}
	if s.S3.AccessKey != "" && s.S3.SecretKey == "" {
		return ErrS3SecretKeyRequired
	}
	return s.validateDecoding()
}

func (s *SourceConfig) validateQuery() error {
	if s.Query != "" && s.Table != "" {
		return ErrQueryAndTable
	}
	if strings.TrimSpace(s.Query) == "" && s.Table == "" {
		return ErrQueryRequired
	}
	if s.Table != "" && !validTableName.MatchString(s.Table) {
		return fmt.Errorf("%w: '%s'", ErrTableNameInvalid, s.Table)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%w, got %d", ErrMaxRetriesInvalid, s.MaxRetries)
	}
	if s.RetryDelay < 0 {
		return fmt.Errorf("%w, got %d", ErrRetryDelayInvalid, s.RetryDelay)
	}
	if s.QueryTimeout < 0 {
		return fmt.Errorf("%w, got %d", ErrQueryTimeoutInvalid, s.QueryTimeout)
	}
	return nil
}

// options converts the comparison settings for the comparator
func (c *CompareConfig) options() comparator.Options {
	opts := comparator.DefaultOptions()
	opts.Keys = c.Keys
	opts.FloatTol = c.FloatTol
	opts.SampleSize = c.SampleSize
	opts.IgnoreColumnOrder = c.IgnoreColumnOrder
	return opts
}
