package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Dennisbonke/wayland-greeter/internal/audit"
	"github.com/Dennisbonke/wayland-greeter/internal/config"
	"github.com/Dennisbonke/wayland-greeter/internal/logging"
	"github.com/Dennisbonke/wayland-greeter/internal/login1"
)

var log = logging.L("main")

var (
	version  = "0.1.0"
	cfgFile  string
	exitCode int

	// logConsole is where log records go besides log_file.
	logConsole io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:           "greeter-broker",
	Short:         "Log a user in on a seat and run their session program",
	Long:          `greeter-broker authenticates a user, registers a session with systemd-logind and runs one program in it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("greeter-broker v%s\n", version)
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List logind sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions(cmd.Context(), cmd.OutOrStdout())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printConfig(cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/greeter-broker/broker.yaml)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

// loadConfig loads and validates the configuration, then sets up logging.
// The returned closer flushes the log file.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	result := cfg.ValidateTiered()

	closer, err := logging.InitFile(cfg.LogFormat, cfg.LogLevel, logConsole, cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		log.Warn("log file unavailable, logging to stderr only", "path", cfg.LogFile, logging.KeyError, err.Error())
		closer = io.NopCloser(nil)
	}

	cfgLog := logging.L("config")
	for _, w := range result.Warnings {
		cfgLog.Warn("config validation", logging.KeyError, w.Error())
	}
	for _, f := range result.Fatals {
		cfgLog.Error("config validation", logging.KeyError, f.Error())
	}

	if result.HasFatals() {
		closer.Close()
		return nil, nil, fmt.Errorf("invalid configuration: %w", result.Fatals[0])
	}
	return cfg, closer, nil
}

// openAudit returns nil when auditing is off or the trail cannot be opened.
func openAudit(cfg *config.Config) *audit.Logger {
	if !cfg.AuditEnabled {
		return nil
	}
	al, err := audit.NewLogger(cfg.AuditPath, cfg.AuditMaxSizeMB, cfg.AuditMaxBackups)
	if err != nil {
		log.Warn("audit trail unavailable", "path", cfg.AuditPath, logging.KeyError, err.Error())
		return nil
	}
	al.Log(audit.EventBrokerStart, "", map[string]any{"version": version, "pid": os.Getpid()})
	return al
}

func listSessions(ctx context.Context, out io.Writer) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	client, err := login1.Dial(ctx, time.Duration(cfg.ManagerCallTimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}
	defer client.Close()

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-10s %-8s %-16s %-8s %s\n", "SESSION", "UID", "USER", "SEAT", "PATH")
	for _, s := range sessions {
		fmt.Fprintf(out, "%-10s %-8d %-16s %-8s %s\n", s.ID, s.UID, s.User, s.Seat, s.Path)
	}
	return nil
}

func printConfig(out, errOut io.Writer) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	result := cfg.ValidateTiered()
	for _, w := range result.Warnings {
		fmt.Fprintf(errOut, "warning: %v\n", w)
	}
	for _, f := range result.Fatals {
		fmt.Fprintf(errOut, "error: %v\n", f)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	if result.HasFatals() {
		return fmt.Errorf("configuration has %d error(s)", len(result.Fatals))
	}
	return nil
}
