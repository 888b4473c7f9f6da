package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/QUANTMATRIXAI/trinity-dev/internal/config"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/report"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/services"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/sources"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/table"
	"github.com/QUANTMATRIXAI/trinity-dev/internal/validation"
)

// runOnce loads the sources and validates them as pipeline
func (c *cli) runOnce(ctx context.Context, pipeline string, srcs map[string]sources.Source) (*report.Report, map[string]*table.Table, error) {
	inputs, err := sources.LoadAll(ctx, srcs, c.logger)
	if err != nil {
		return nil, nil, err
	}
	rep, err := c.service.Validate(ctx, pipeline, inputs)
	if err != nil {
		return nil, nil, err
	}
	return rep, inputs, nil
}

// fileSources maps key=path assignments onto file sources
func (c *cli) fileSources(assignments []string) (map[string]sources.Source, error) {
	paths, err := parseAssignments("input", assignments)
	if err != nil {
		return nil, err
	}
	srcs := make(map[string]sources.Source, len(paths))
	for key, path := range paths {
		srcs[key] = sources.FileSource{Path: path, Checker: c.files}
	}
	return srcs, nil
}

func newRunCmd(c *cli) *cobra.Command {
	var (
		opts   reportOptions
		inputs []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Validate local CSV, Excel or JSON files",
		Example: `  trinity-validate run -p category_forecasting --input data=forecast.csv
  trinity-validate run -p mmm --input media=media.xlsx --input sales=sales.csv --out report.xlsx --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srcs, err := c.fileSources(inputs)
			if err != nil {
				return err
			}
			return c.validate(cmd, &opts, srcs)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "input file as key=path (repeatable)")
	return cmd
}

func newSQLCmd(c *cli) *cobra.Command {
	var (
		opts    reportOptions
		driver  string
		dsn     string
		queries []string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Validate the result sets of SQL queries",
		Long: `Runs one read query per input against a SQLite, PostgreSQL, MySQL or SQL Server
database. The DSN defaults to $TRINITY_SQL_DSN, which may be set in a .env file.`,
		Example: `  trinity-validate sql -p promo_intensity --driver postgres --query data="SELECT * FROM promo"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stmts, err := parseAssignments("query", queries)
			if err != nil {
				return err
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or %s_SQL_DSN is required", config.EnvPrefix)
			}
			name, err := sources.DriverName(driver)
			if err != nil {
				return err
			}

			db, err := sql.Open(name, dsn)
			if err != nil {
				return fmt.Errorf("open %s: %w", name, err)
			}
			defer db.Close()

			srcs := make(map[string]sources.Source, len(stmts))
			for key, query := range stmts {
				srcs[key] = sources.SQLSource{Query: query, Timeout: timeout, DB: db}
			}
			return c.validate(cmd, &opts, srcs)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&driver, "driver", "postgres", "database driver: sqlite, postgres, mysql or sqlserver")
	cmd.Flags().StringVar(&dsn, "dsn", os.Getenv(config.EnvPrefix+"_SQL_DSN"), "data source name")
	cmd.Flags().StringArrayVarP(&queries, "query", "q", nil, "input query as key=SQL (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "per query timeout")
	return cmd
}

func newMongoCmd(c *cli) *cobra.Command {
	var (
		opts        reportOptions
		uri         string
		database    string
		collections []string
		limit       int64
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mongo",
		Short: "Validate MongoDB collections",
		Long: `Reads every document of one collection per input. The URI defaults to
$TRINITY_MONGO_URI, which may be set in a .env file.`,
		Example: `  trinity-validate mongo -p mmm --db marketing --collection media=spend --collection sales=sales`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			colls, err := parseAssignments("collection", collections)
			if err != nil {
				return err
			}

			client, err := mongo.Connect(options.Client().ApplyURI(uri))
			if err != nil {
				return fmt.Errorf("connect mongo: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			}()

			srcs := make(map[string]sources.Source, len(colls))
			for key, coll := range colls {
				srcs[key] = sources.MongoSource{
					Database:   database,
					Collection: coll,
					Limit:      limit,
					Timeout:    timeout,
					Client:     client,
				}
			}
			return c.validate(cmd, &opts, srcs)
		},
	}
	opts.register(cmd)
	defaultURI := os.Getenv(config.EnvPrefix + "_MONGO_URI")
	if defaultURI == "" {
		defaultURI = "mongodb://localhost:27017"
	}
	cmd.Flags().StringVar(&uri, "uri", defaultURI, "MongoDB connection URI")
	cmd.Flags().StringVar(&database, "db", "", "database name")
	cmd.Flags().StringArrayVarP(&collections, "collection", "c", nil, "input collection as key=name (repeatable)")
	cmd.Flags().Int64Var(&limit, "limit", 0, "maximum documents per collection (0 reads all)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "per collection timeout")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func newScheduleCmd(c *cli) *cobra.Command {
	var (
		cronExpr string
		pipeline string
		inputs   []string
		runNow   bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Re-run a file validation on a cron schedule",
		Long: `Validates the input files every time the cron expression fires and logs a
summary of each run. Runs until interrupted.`,
		Example: `  trinity-validate schedule --cron "0 6 * * *" -p mmm --input media=/data/media.csv --input sales=/data/sales.csv
  trinity-validate schedule --cron "@every 15m" -p promo_intensity --input data=promo.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := validation.InputsFor(pipeline); err != nil {
				return err
			}
			srcs, err := c.fileSources(inputs)
			if err != nil {
				return err
			}
			ctx := services.WithSource(cmd.Context(), "schedule")

			sched := cron.New()
			if _, err := sched.AddFunc(cronExpr, func() { c.scheduledRun(ctx, pipeline, srcs) }); err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
			}

			c.logger.InfoContext(ctx, "validation scheduled",
				slog.String("cron", cronExpr),
				slog.String("pipeline", pipeline),
				slog.Int("inputs", len(srcs)))

			if runNow {
				c.scheduledRun(ctx, pipeline, srcs)
			}
			sched.Start()
			<-ctx.Done()
			<-sched.Stop().Done()

			c.logger.Info("schedule stopped", slog.String("pipeline", pipeline))
			return nil
		},
	}
	cmd.Flags().StringVar(&cronExpr, "cron", "", `cron expression, for example "0 6 * * *" or "@every 1h"`)
	cmd.Flags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline to run")
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "input file as key=path (repeatable)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "validate once immediately before the first tick")
	_ = cmd.MarkFlagRequired("cron")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

// scheduledRun validates once and logs the outcome. Failures never stop the
// schedule.
func (c *cli) scheduledRun(ctx context.Context, pipeline string, srcs map[string]sources.Source) {
	start := time.Now()
	rep, _, err := c.runOnce(ctx, pipeline, srcs)
	if err != nil {
		c.logger.ErrorContext(ctx, "scheduled validation failed",
			slog.String("pipeline", pipeline),
			slog.String("error", err.Error()))
		return
	}

	counts := services.StatusCounts(rep)
	c.logger.InfoContext(ctx, "scheduled validation complete",
		slog.String("pipeline", pipeline),
		slog.Bool("ok", rep.OK()),
		slog.Int("pass", counts["pass"]),
		slog.Int("warn", counts["warn"]),
		slog.Int("fail", counts["fail"]),
		slog.Duration("duration", time.Since(start)))
	for _, row := range rep.Rows() {
		if row.Status == report.StatusFail {
			c.logger.WarnContext(ctx, "failing check",
				slog.String("pipeline", pipeline),
				slog.String("check", row.Check),
				slog.String("column", row.ColumnName()),
				slog.String("message", row.Message))
		}
	}
}

func newPipelinesCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List pipelines and the input keys they require",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipelines := c.service.Pipelines()
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, pipelines)
			}
			for _, p := range pipelines {
				fmt.Fprintf(w, "%-22s %s\n", p.Name, strings.Join(p.Inputs, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
