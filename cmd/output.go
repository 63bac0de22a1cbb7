package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/airframesio/data-comparer/cmd/comparator"
	"github.com/airframesio/data-comparer/cmd/compressors"
	"github.com/airframesio/data-comparer/cmd/dataset"
	"github.com/airframesio/data-comparer/cmd/formatters"
)

// reportEnvelope is the JSON document written for --output-format json
type reportEnvelope struct {
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Version     string             `json:"version"`
	Left        string             `json:"left_source"`
	Right       string             `json:"right_source"`
	Options     envelopeOptions    `json:"options"`
	Report      *comparator.Report `json:"report"`
}

type envelopeOptions struct {
	Keys              []string `json:"keys"`
	FloatTol          float64  `json:"float_tol"`
	SampleSize        int      `json:"sample_size"`
	IgnoreColumnOrder bool     `json:"ignore_column_order"`
}

func newReportEnvelope(report *comparator.Report, left, right string, opts comparator.Options) *reportEnvelope {
	keys := opts.Keys
	if keys == nil {
		keys = []string{}
	}
	return &reportEnvelope{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Version:     Version,
		Left:        left,
		Right:       right,
		Options: envelopeOptions{
			Keys:              keys,
			FloatTol:          opts.FloatTol,
			SampleSize:        opts.SampleSize,
			IgnoreColumnOrder: opts.IgnoreColumnOrder,
		},
		Report: report,
	}
}

// writeOutput writes the report to the configured file or stdout
func writeOutput(config *CompareConfig, env *reportEnvelope) error {
	var output io.Writer = os.Stdout
	if config.OutputFile != "" {
		file, err := os.Create(config.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		output = file
	}
	return writeReport(output, config.OutputFormat, env)
}

func writeReport(w io.Writer, format string, env *reportEnvelope) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(env)
	}

	// Human-readable format
	return writeTextReport(w, env)
}

// writeTextReport outputs results in human-readable text format
func writeTextReport(w io.Writer, env *reportEnvelope) error {
	r := env.Report
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	b.WriteString("COMPARISON RESULTS\n")
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "Run:   %s\n", env.RunID)
	fmt.Fprintf(&b, "Left:  %s (%d rows, %d columns)\n", env.Left, r.LeftCount, len(r.LeftColumns))
	fmt.Fprintf(&b, "Right: %s (%d rows, %d columns)\n", env.Right, r.RightCount, len(r.RightColumns))
	if r.Mode == comparator.ModeKeyed {
		fmt.Fprintf(&b, "Mode:  keyed on %s\n", strings.Join(env.Options.Keys, ", "))
	} else {
		b.WriteString("Mode:  unkeyed\n")
	}
	b.WriteString("\n")

	writeSchemaSection(&b, r)
	writeRowCountSection(&b, r)

	b.WriteString("DATA COMPARISON\n")
	b.WriteString("─────────────────────────────────\n")
	switch {
	case r.Differences.MissingKey != "":
		fmt.Fprintf(&b, "⚠️  Cannot join on keys: %s\n", r.Differences.MissingKey)
	case r.Differences.KeyedDiff != nil:
		writeKeyedSection(&b, r.Differences.KeyedDiff)
	case r.Differences.RowSetDiff != nil:
		writeRowSetSection(&b, r.Differences.RowSetDiff)
	default:
		b.WriteString("⚠️  Rows not compared because the column sets differ\n")
	}
	b.WriteString("\n")

	if r.HasDifferences() {
		b.WriteString("⚠️  Datasets differ\n")
	} else {
		b.WriteString("✅ Datasets are equal\n")
	}
	b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSchemaSection(b *strings.Builder, r *comparator.Report) {
	b.WriteString("SCHEMA COMPARISON\n")
	b.WriteString("─────────────────────────────────\n")
	if r.ColumnsEqual {
		fmt.Fprintf(b, "✅ Same %d columns on both sides\n\n", len(r.LeftColumns))
		return
	}

	b.WriteString("⚠️  Column sets differ\n")
	missingLeft := difference(r.RightColumns, r.LeftColumns)
	missingRight := difference(r.LeftColumns, r.RightColumns)
	if d := r.Differences.ColumnDiff; d != nil {
		missingLeft, missingRight = d.MissingInLeft, d.MissingInRight
	}
	if len(missingLeft) > 0 {
		b.WriteString("  Columns missing in left:\n")
		for _, col := range missingLeft {
			fmt.Fprintf(b, "    • %s\n", col)
		}
	}
	if len(missingRight) > 0 {
		b.WriteString("  Columns missing in right:\n")
		for _, col := range missingRight {
			fmt.Fprintf(b, "    • %s\n", col)
		}
	}
	b.WriteString("\n")
}

func writeRowCountSection(b *strings.Builder, r *comparator.Report) {
	b.WriteString("ROW COUNTS\n")
	b.WriteString("─────────────────────────────────\n")
	if r.RowCountEqual {
		fmt.Fprintf(b, "✅ Both sides have %d rows\n\n", r.LeftCount)
		return
	}
	fmt.Fprintf(b, "⚠️  Row counts differ\n")
	fmt.Fprintf(b, "  Left:  %d rows\n", r.LeftCount)
	fmt.Fprintf(b, "  Right: %d rows\n", r.RightCount)
	if diff := r.LeftCount - r.RightCount; diff > 0 {
		fmt.Fprintf(b, "  Difference: +%d rows in left\n\n", diff)
	} else {
		fmt.Fprintf(b, "  Difference: +%d rows in right\n\n", -diff)
	}
}

func writeRowSetSection(b *strings.Builder, d *comparator.RowSetDiff) {
	if d.OnlyInLeftCount == 0 && d.OnlyInRightCount == 0 {
		b.WriteString("✅ No data differences found\n")
		return
	}
	fmt.Fprintf(b, "⚠️  Rows only in left: %d\n", d.OnlyInLeftCount)
	writeRows(b, d.OnlyInLeftSample, d.Columns, d.OnlyInLeftCount)
	fmt.Fprintf(b, "⚠️  Rows only in right: %d\n", d.OnlyInRightCount)
	writeRows(b, d.OnlyInRightSample, d.Columns, d.OnlyInRightCount)
}

func writeKeyedSection(b *strings.Builder, d *comparator.KeyedDiff) {
	fmt.Fprintf(b, "Compared columns: %s\n", strings.Join(d.ComparedColumns, ", "))
	if d.LeftOnlyKeysCount == 0 && d.RightOnlyKeysCount == 0 && d.MismatchedRowsCount == 0 {
		b.WriteString("✅ No data differences found\n")
	}
	if d.LeftOnlyKeysCount > 0 {
		fmt.Fprintf(b, "⚠️  Keys only in left: %d\n", d.LeftOnlyKeysCount)
		writeRows(b, d.LeftOnlyKeysSample, d.KeyColumns, d.LeftOnlyKeysCount)
	}
	if d.RightOnlyKeysCount > 0 {
		fmt.Fprintf(b, "⚠️  Keys only in right: %d\n", d.RightOnlyKeysCount)
		writeRows(b, d.RightOnlyKeysSample, d.KeyColumns, d.RightOnlyKeysCount)
	}
	if d.LeftDuplicateKeysCount > 0 || d.RightDuplicateKeysCount > 0 {
		fmt.Fprintf(b, "⚠️  Unpaired duplicate key rows: left %d, right %d\n", d.LeftDuplicateKeysCount, d.RightDuplicateKeysCount)
	}
	if d.MismatchedRowsCount > 0 {
		fmt.Fprintf(b, "⚠️  Rows with differing values: %d\n", d.MismatchedRowsCount)
		for _, m := range d.MismatchedRowsSample {
			fmt.Fprintf(b, "  • %s\n", formatRow(m.Keys, d.KeyColumns))
			for _, col := range m.Columns {
				fmt.Fprintf(b, "      %s: left=%s right=%s\n", col, formatCell(m.LeftValues[col]), formatCell(m.RightValues[col]))
			}
		}
		if rest := d.MismatchedRowsCount - len(d.MismatchedRowsSample); rest > 0 {
			fmt.Fprintf(b, "  … and %d more\n", rest)
		}
	}
}

func writeRows(b *strings.Builder, rows []dataset.Row, columns []string, total int) {
	for _, row := range rows {
		fmt.Fprintf(b, "  • %s\n", formatRow(row, columns))
	}
	if rest := total - len(rows); rest > 0 {
		fmt.Fprintf(b, "  … and %d more\n", rest)
	}
}

// formatRow renders a row as col=value pairs in column order
func formatRow(row dataset.Row, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+"="+formatCell(row[col]))
	}
	return strings.Join(parts, ", ")
}

func formatCell(v dataset.Value) string {
	switch v.Kind() {
	case dataset.KindNull:
		return "NULL"
	case dataset.KindText:
		return fmt.Sprintf("%q", v.AsText())
	default:
		return v.String()
	}
}

// difference returns the entries of a absent from b, keeping a's order
func difference(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	for _, s := range a {
		if !in[s] {
			out = append(out, s)
		}
	}
	return out
}

// formatBytes renders a byte count with a binary unit
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// exportedFile describes one written sample file
type exportedFile struct {
	Path string
	Rows int
	Size int64
}

// sampleTable is one difference list flattened into rows
type sampleTable struct {
	name    string
	columns []string
	rows    []dataset.Row
}

// sampleTables flattens the report samples. Mismatches become one row per
// key with key_<k>, left_<c> and right_<c> columns.
func sampleTables(r *comparator.Report) []sampleTable {
	var tables []sampleTable
	if d := r.Differences.RowSetDiff; d != nil {
		tables = append(tables,
			sampleTable{name: "only_in_left_sample", columns: d.Columns, rows: d.OnlyInLeftSample},
			sampleTable{name: "only_in_right_sample", columns: d.Columns, rows: d.OnlyInRightSample},
		)
	}
	if d := r.Differences.KeyedDiff; d != nil {
		tables = append(tables,
			sampleTable{name: "left_only_keys_sample", columns: d.KeyColumns, rows: d.LeftOnlyKeysSample},
			sampleTable{name: "right_only_keys_sample", columns: d.KeyColumns, rows: d.RightOnlyKeysSample},
			flattenMismatches(d),
		)
	}
	return tables
}

func flattenMismatches(d *comparator.KeyedDiff) sampleTable {
	differing := make(map[string]bool)
	for _, m := range d.MismatchedRowsSample {
		for _, col := range m.Columns {
			differing[col] = true
		}
	}

	columns := make([]string, 0, len(d.KeyColumns)+2*len(differing)+1)
	for _, k := range d.KeyColumns {
		columns = append(columns, "key_"+k)
	}
	var valueColumns []string
	for _, col := range d.ComparedColumns {
		if differing[col] {
			valueColumns = append(valueColumns, col)
			columns = append(columns, "left_"+col, "right_"+col)
		}
	}
	columns = append(columns, "mismatched_columns")

	rows := make([]dataset.Row, 0, len(d.MismatchedRowsSample))
	for _, m := range d.MismatchedRowsSample {
		row := make(dataset.Row, len(columns))
		for _, k := range d.KeyColumns {
			row["key_"+k] = m.Keys[k]
		}
		for _, col := range valueColumns {
			// columns that matched for this key stay null
			row["left_"+col] = m.LeftValues[col]
			row["right_"+col] = m.RightValues[col]
		}
		row["mismatched_columns"] = dataset.Text(strings.Join(m.Columns, ","))
		rows = append(rows, row)
	}
	return sampleTable{name: "mismatched_rows_sample", columns: columns, rows: rows}
}

// exportSamples writes every non-empty sample of the report to dir
func exportSamples(dir, format, compression string, r *comparator.Report) ([]exportedFile, error) {
	formatter, err := formatters.GetFormatter(format)
	if err != nil {
		return nil, err
	}
	codec, err := compressors.Get(compression)
	if err != nil {
		return nil, err
	}
	// Parquet compresses its pages, so the file itself stays unwrapped
	if format == formatters.FormatParquet && codec.Name() != "none" {
		formatter = formatters.NewParquetFormatterWithCompression(codec.Name())
		codec = compressors.NewNone()
	}

	var written []exportedFile
	for _, table := range sampleTables(r) {
		if len(table.rows) == 0 || len(table.columns) == 0 {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return written, fmt.Errorf("failed to create export directory: %w", err)
		}

		data, err := formatter.Format(table.columns, table.rows)
		if err != nil {
			return written, fmt.Errorf("failed to format %s: %w", table.name, err)
		}
		data, err = codec.Compress(data, codec.DefaultLevel())
		if err != nil {
			return written, fmt.Errorf("failed to compress %s: %w", table.name, err)
		}

		path := filepath.Join(dir, table.name+formatter.Extension()+codec.Extension())
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, exportedFile{Path: path, Rows: len(table.rows), Size: int64(len(data))})
	}
	return written, nil
}
