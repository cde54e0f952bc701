package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/mouthswap/internal/store"
	"github.com/andresmejia3/mouthswap/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Options holds the configuration of the swap command
type Options struct {
	DestPath            string
	DestLandmarksPath   string
	SourcePath          string
	SourceLandmarksPath string
	OutputPath          string
	AudioPath           string
	ReportPath          string
	NumEngines          int
	FacetWorkers        int
	FPS                 float64
	CRF                 int
	Preset              string
	OnFailure           string
	Tolerance           float64
	ColorTransfer       bool
	NoAntiAlias         bool
}

var (
	// DB is the job ledger shared by subcommands. It stays nil when no
	// database is configured.
	DB *store.Store
	// dbURL is the connection string
	dbURL string
	// logLevel is the logrus level name
	logLevel string
	// log is the command-wide logger
	log = logrus.New()
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "mouthswap",
	Short:   "Lower-face swap engine for talking-head video",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		log.SetLevel(level)
		log.SetOutput(os.Stderr)

		url := resolveDBURL(dbURL, os.Getenv)
		if url == "" {
			log.Debug("no database configured, job ledger disabled")
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	// Errors are printed once by run, not by cobra.
	SilenceErrors: true,
}

// closeDB releases the ledger connection. cobra skips post-run hooks when a
// command fails, so this runs from run instead.
func closeDB() {
	if DB == nil {
		return
	}
	// Use Background here because the main context might be cancelled already (due to Ctrl+C)
	// and we still need to send the "Close" command to the DB.
	DB.Close(context.Background())
	DB = nil
}

// resolveDBURL prefers the --db flag and falls back to POSTGRES_* variables.
// An empty result disables persistence.
func resolveDBURL(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	host := getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	user := getenv("POSTGRES_USER")
	pass := getenv("POSTGRES_PASSWORD")
	name := getenv("POSTGRES_DB")
	port := getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// requireDB is for commands that only make sense with a ledger.
func requireDB() error {
	if DB == nil {
		return fmt.Errorf("no database configured: pass --db or set POSTGRES_HOST")
	}
	return nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the root command and returns the process exit code. Errors a
// command already reported through utils.ShowError are not printed again.
func run(ctx context.Context, stderr io.Writer) int {
	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	err := rootCmd.ExecuteContext(ctx)
	closeDB()
	if err == nil {
		return 0
	}
	if !utils.WasShown(err) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the job ledger (default: POSTGRES_* env, or disabled)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}
