// Command relplan loads type descriptions and prints the ordered statements
// planned for them. With --dsn it also creates the tables on a database.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"
	_ "modernc.org/sqlite"

	"github.com/syssam/relplan/dialect"
	"github.com/syssam/relplan/dialect/sql"
	"github.com/syssam/relplan/dialect/sql/schema"
	"github.com/syssam/relplan/engine"
	rschema "github.com/syssam/relplan/schema"
	"github.com/syssam/relplan/schema/load"
)

type options struct {
	Schema   string   `short:"s" long:"schema" env:"RELPLAN_SCHEMA" description:"type description file (yaml or json)"`
	Config   string   `short:"c" long:"config" env:"RELPLAN_CONFIG" description:"config file"`
	Dialect  string   `short:"d" long:"dialect" env:"RELPLAN_DIALECT" description:"sql dialect" choice:"sqlite" choice:"postgres" choice:"mysql"`
	Ops      []string `long:"op" description:"statement kinds to print" choice:"create" choice:"insert" choice:"select"`
	Types    []string `short:"t" long:"type" description:"types to plan, all by default"`
	Atlas    bool     `long:"atlas" description:"plan create statements with the atlas migration planner"`
	Previous string   `long:"previous" description:"previous type description file, validate the change against it"`
	DSN      string   `long:"dsn" env:"RELPLAN_DSN" description:"create the tables on this database"`
	Stats    bool     `long:"stats" description:"print statement statistics of the database run"`

	AllowDrop bool `long:"allow-drop" description:"report dropped tables and columns as warnings"`
	Dbg       bool `long:"dbg" description:"debug mode"`
}

// fileConfig is the content of the config file. Flags take precedence.
type fileConfig struct {
	Schema   string   `mapstructure:"schema"`
	Dialect  string   `mapstructure:"dialect"`
	Ops      []string `mapstructure:"ops"`
	Atlas    bool     `mapstructure:"atlas"`
	Previous string   `mapstructure:"previous"`
	DSN      string   `mapstructure:"dsn"`
}

var revision = "latest"

func main() {
	fmt.Printf("relplan %s\n", revision)

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}
	setupLog(opts.Dbg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, opts, os.Stdout); err != nil {
		if opts.Dbg {
			log.Printf("[ERROR] %v", err)
		}
		fmt.Fprintf(os.Stderr, "failed, %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.Config != "" {
		cfg, err := loadConfig(opts.Config)
		if err != nil {
			return err
		}
		opts = merge(opts, cfg)
	}
	if opts.Schema == "" {
		return fmt.Errorf("schema file is required")
	}
	if opts.Dialect == "" {
		opts.Dialect = dialect.SQLite
	}
	if !dialect.Valid(opts.Dialect) {
		return fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
	if len(opts.Ops) == 0 {
		opts.Ops = []string{sql.OpCreate.String()}
	}

	types, err := load.File(opts.Schema)
	if err != nil {
		return err
	}
	if types, err = selectTypes(types, opts.Types); err != nil {
		return err
	}
	log.Printf("[DEBUG] loaded %d types from %s", len(types), opts.Schema)

	cache := engine.NewPlanCache(engine.CacheLog(slog.Default()))
	if err := cache.Warm(ctx, opts.Dialect, types...); err != nil {
		return err
	}
	for _, t := range types {
		if err := describe(ctx, out, cache, t, opts); err != nil {
			return err
		}
	}

	if opts.Previous != "" {
		if err := compare(out, cache, types, opts); err != nil {
			return err
		}
	}

	if opts.DSN != "" {
		drv, err := sql.OpenStats(opts.Dialect, opts.DSN, sql.WithSlowLog(slog.Default()))
		if err != nil {
			return fmt.Errorf("open %s database: %w", opts.Dialect, err)
		}
		client, err := engine.NewClient(engine.Driver(drv), engine.WithCache(cache), engine.Log(slog.Default()))
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.Create(ctx, types...); err != nil {
			return err
		}
		fmt.Fprintf(out, "-- created tables of %d types\n", len(types))
		if opts.Stats {
			fmt.Fprintf(out, "-- stats: %s\n", drv.Stats().Snapshot())
		}
	}
	return nil
}

// describe prints the statement order and the statements of a type for
// every requested statement kind.
func describe(ctx context.Context, out io.Writer, cache *engine.PlanCache, t *rschema.Type, opts options) error {
	fmt.Fprintf(out, "-- type %s (%s)\n", t.Name, t.TableName())
	for _, name := range opts.Ops {
		op, err := sql.ParseOp(name)
		if err != nil {
			return err
		}
		p, err := cache.Get(t, op, opts.Dialect)
		if err != nil {
			return err
		}
		order := make([]string, len(p.Tables))
		for i, tbl := range p.Tables {
			order[i] = tbl.Name
		}
		fmt.Fprintf(out, "-- %s order: %s\n", op, strings.Join(order, ", "))

		var stmts []string
		if op == sql.OpCreate && opts.Atlas {
			stmts, err = schema.DDL(ctx, p.Root, opts.Dialect)
		} else {
			stmts, err = p.Render()
		}
		if err != nil {
			return err
		}
		for _, s := range stmts {
			fmt.Fprintf(out, "%s;\n", s)
		}
	}
	return nil
}

// compare validates the tables of the loaded types against the tables of
// the same types in the previous description file.
func compare(out io.Writer, cache *engine.PlanCache, types []*rschema.Type, opts options) error {
	prev, err := load.File(opts.Previous)
	if err != nil {
		return err
	}
	var vopts []schema.ValidateOption
	if opts.AllowDrop {
		vopts = append(vopts, schema.AllowDropColumn(), schema.AllowDropTable())
	}
	for _, t := range types {
		i := slices.IndexFunc(prev, func(p *rschema.Type) bool { return p.Name == t.Name })
		if i < 0 {
			fmt.Fprintf(out, "-- type %s is new\n", t.Name)
			continue
		}
		before, err := cache.Get(prev[i], sql.OpCreate, opts.Dialect)
		if err != nil {
			return err
		}
		after, err := cache.Get(t, sql.OpCreate, opts.Dialect)
		if err != nil {
			return err
		}
		result := schema.ValidateDiff(before.Tables, after.Tables, vopts...)
		fmt.Fprintf(out, "-- changes of %s: %s\n", t.Name, strings.ReplaceAll(strings.TrimSpace(result.String()), "\n", "\n-- "))
		if err := result.Err(); err != nil {
			return fmt.Errorf("type %s: %w", t.Name, err)
		}
	}
	return nil
}

func selectTypes(types []*rschema.Type, names []string) ([]*rschema.Type, error) {
	if len(names) == 0 {
		return types, nil
	}
	selected := make([]*rschema.Type, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(types, func(t *rschema.Type) bool { return t.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("type %q is not declared", name)
		}
		selected = append(selected, types[i])
	}
	return selected, nil
}

func loadConfig(path string) (*fileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// merge fills the options that were not set on the command line from the
// config file.
func merge(opts options, cfg *fileConfig) options {
	if opts.Schema == "" {
		opts.Schema = cfg.Schema
	}
	if opts.Dialect == "" {
		opts.Dialect = cfg.Dialect
	}
	if len(opts.Ops) == 0 {
		opts.Ops = cfg.Ops
	}
	if opts.Previous == "" {
		opts.Previous = cfg.Previous
	}
	if opts.DSN == "" {
		opts.DSN = cfg.DSN
	}
	opts.Atlas = opts.Atlas || cfg.Atlas
	return opts
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
