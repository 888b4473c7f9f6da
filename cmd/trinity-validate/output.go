package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apierrors "github.com/QUANTMATRIXAI/trinity-dev/internal/errors"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/exporter"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/services"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/sources"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
)

// Report output formats
const (
	formatText = "text"
	formatJSON = "json"
	formatCSV  = string(exporter.FormatCSV)
	formatXLSX = string(exporter.FormatXLSX)
)

// reportOptions are the flags shared by every command that produces a report
type reportOptions struct {
	pipeline string
	format   string
	out      string
	strict   bool
}

func (o *reportOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.pipeline, "pipeline", "p", "", "pipeline to run (category_forecasting, promo_intensity, mmm)")
	cmd.Flags().StringVarP(&o.format, "format", "f", formatText, "report format: text, json, csv or xlsx")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "exit with status 2 when any check fails")
	_ = cmd.MarkFlagRequired("pipeline")
}

// resolveFormat picks the output format. An --out extension wins over the
// default when --format was not given explicitly.
func resolveFormat(format string, explicit bool, out string) (string, error) {
	if !explicit && out != "" {
		switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(out), ".")); ext {
		case formatJSON, formatCSV, formatXLSX:
			format = ext
		}
	}

	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case formatText, formatJSON, formatCSV, formatXLSX:
		if f == formatXLSX && out == "" {
			return "", fmt.Errorf("xlsx output requires --out")
		}
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// validate loads every source, runs the pipeline and emits the report
func (c *cli) validate(cmd *cobra.Command, opts *reportOptions, srcs map[string]sources.Source) error {
	if _, err := validation.InputsFor(opts.pipeline); err != nil {
		return err
	}
	format, err := resolveFormat(opts.format, cmd.Flags().Changed("format"), opts.out)
	if err != nil {
		return err
	}
	if opts.out != "" {
		if err := c.files.ValidateOutputPath(opts.out); err != nil {
			return err
		}
	}

	rep, inputs, err := c.runOnce(services.WithSource(cmd.Context(), "cli"), opts.pipeline, srcs)
	if err != nil {
		return err
	}

	if err := emit(cmd.OutOrStdout(), format, opts.out, opts.pipeline, rep, inputs); err != nil {
		return err
	}
	if opts.strict && !rep.OK() {
		return errReportNotOK
	}
	return nil
}

func emit(stdout io.Writer, format, out, pipeline string, rep *report.Report, inputs map[string]*table.Table) error {
	w := stdout
	if out != "" {
		file, err := os.Create(out)
		if err != nil {
			return apierrors.NewExportError("failed to create "+out, err)
		}
		defer file.Close()
		w = file
	}

	if err := writeReport(w, format, pipeline, rep, inputs); err != nil {
		return apierrors.NewExportError("failed to write "+format+" report", err)
	}

	if out != "" {
		fmt.Fprintf(stdout, "%s: %s written to %s\n", exporter.Verdict(rep), pipeline, out)
	}
	return nil
}

func writeReport(w io.Writer, format, pipeline string, rep *report.Report, inputs map[string]*table.Table) error {
	switch format {
	case formatJSON:
		return writeJSON(w, services.NewValidateResponse(pipeline, rep, inputs))
	case formatCSV, formatXLSX:
		meta := exporter.Meta{Pipeline: pipeline, GeneratedAt: time.Now()}
		return exporter.Write(w, exporter.Format(format), rep, meta)
	default:
		counts := services.StatusCounts(rep)
		_, err := fmt.Fprintf(w, "Pipeline: %s (pass %d, warn %d, fail %d)\n%s",
			pipeline, counts["pass"], counts["warn"], counts["fail"], rep)
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
