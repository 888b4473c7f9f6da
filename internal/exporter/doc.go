// Package exporter writes validation reports as downloadable files.
//
// CSV exports have the columns check, status, msg and column, optionally
// prefixed with a UTF-8 BOM for Excel. XLSX exports hold a Report sheet with
// one styled row per outcome and a Summary sheet with the verdict and the
// count of rows per status.
//
//	err := exporter.Write(w, exporter.FormatXLSX, rep, exporter.Meta{Pipeline: "mmm"})
package exporter
