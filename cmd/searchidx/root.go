package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchidx/internal/config"
	logpkg "github.com/kailas-cloud/searchidx/internal/logger"
	"github.com/kailas-cloud/searchidx/internal/version"
	searchidx "github.com/kailas-cloud/searchidx/pkg/sdk"
)

// app is the state shared by every subcommand once the root pre-run has loaded config.
type app struct {
	configPath string
	env        string
	service    string
	index      string
	apiKey     string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "searchidx",
		Short:        "Manage and query a search index",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "config file (default: config/<env>.yaml)")
	f.StringVar(&a.env, "env", config.GetEnv(), "environment: prod, dev or local")
	f.StringVar(&a.service, "service", "", "service name or endpoint URL (overrides config)")
	f.StringVarP(&a.index, "index", "i", "", "index name (overrides config)")
	f.StringVar(&a.apiKey, "api-key", "", "admin api key (overrides config)")

	root.AddCommand(
		newExistsCmd(a),
		newGetCmd(a),
		newCreateCmd(a),
		newDeleteCmd(a),
		newIndexCmd(a),
		newLookupCmd(a),
		newCountCmd(a),
		newSearchCmd(a),
		newSuggestCmd(a),
		newHealthCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load() error {
	var (
		cfg config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.LoadEnv(a.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.service != "" {
		cfg.Service.Name = a.service
	}
	if a.index != "" {
		cfg.Service.Index = a.index
	}
	if a.apiKey != "" {
		cfg.Service.APIKey = a.apiKey
	}

	logger, err := logpkg.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// client builds the SDK client from the loaded config.
func (a *app) client() (*searchidx.Client, error) {
	s := a.cfg.Service
	c, err := searchidx.New(s.Name, s.Index, s.APIKey,
		searchidx.WithAPIVersion(s.APIVersion),
		searchidx.WithHTTPClient(&http.Client{Timeout: time.Duration(s.TimeoutSec) * time.Second}),
		searchidx.WithMaxAttempts(a.cfg.Retry.MaxAttempts),
		searchidx.WithBaseDelay(a.cfg.Retry.BaseDelay),
		searchidx.WithMaxBatchSize(a.cfg.Batch.MaxSize),
		searchidx.WithBatchConcurrency(a.cfg.Batch.Concurrency),
		searchidx.WithZapLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Overrides the root pre-run: no config is needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
