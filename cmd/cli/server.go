package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/notegraph/pkg/config"
	"github.com/soundprediction/notegraph/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the notegraph HTTP server",
	Long: `Start the notegraph HTTP server.

The server provides endpoints for:
- Materializing extractions and analyzing text
- Reading and deleting a user's graph
- Note CRUD when a Postgres DSN is configured
- Health checks and Prometheus metrics

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	serverCmd.Flags().String("db-uri", "bolt://localhost:7687", "Neo4j URI")
	serverCmd.Flags().String("db-username", "", "Neo4j username")
	serverCmd.Flags().String("db-password", "", "Neo4j password")
	serverCmd.Flags().String("db-database", "", "Neo4j database")

	serverCmd.Flags().String("postgres-dsn", "", "Postgres DSN for notes and error logs")

	serverCmd.Flags().String("nlp-provider", "none", "NLP provider (openai, none)")
	serverCmd.Flags().String("nlp-model", "gpt-4o-mini", "NLP model")
	serverCmd.Flags().String("nlp-api-key", "", "NLP API key")
	serverCmd.Flags().String("nlp-base-url", "", "NLP base URL")

	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for telemetry (errors and token usage)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := bootstrap(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("failed to initialize notegraph: %w", err)
	}
	defer func() {
		if err := a.close(); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	}()

	srv := server.New(cfg, a.client, a.notes, a.logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()
	a.logger.Info("Server started", "address", cfg.Server.Address(), "notes", a.notes != nil)

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		a.logger.Info("Received signal, shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		a.logger.Info("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = serverHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = serverPort
	}
	if flags.Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	if flags.Changed("db-uri") {
		cfg.Database.URI, _ = flags.GetString("db-uri")
	}
	if flags.Changed("db-username") {
		cfg.Database.Username, _ = flags.GetString("db-username")
	}
	if flags.Changed("db-password") {
		cfg.Database.Password, _ = flags.GetString("db-password")
	}
	if flags.Changed("db-database") {
		cfg.Database.Database, _ = flags.GetString("db-database")
	}
	if flags.Changed("postgres-dsn") {
		cfg.Postgres.DSN, _ = flags.GetString("postgres-dsn")
	}

	if cfg.NLP.Models == nil {
		cfg.NLP.Models = make(map[string]config.NLPModelConfig)
	}
	m := cfg.NLP.Models["default"]
	if flags.Changed("nlp-provider") {
		m.Provider, _ = flags.GetString("nlp-provider")
	}
	if flags.Changed("nlp-model") {
		m.Model, _ = flags.GetString("nlp-model")
	}
	if flags.Changed("nlp-api-key") {
		m.APIKey, _ = flags.GetString("nlp-api-key")
	}
	if flags.Changed("nlp-base-url") {
		m.BaseURL, _ = flags.GetString("nlp-base-url")
	}
	cfg.NLP.Models["default"] = m

	if flags.Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = flags.GetString("telemetry-parquet-path")
	}
}
