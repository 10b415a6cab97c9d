package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/Dennisbonke/wayland-greeter/internal/config"
	"github.com/Dennisbonke/wayland-greeter/internal/health"
	"github.com/Dennisbonke/wayland-greeter/internal/login1"
	"github.com/Dennisbonke/wayland-greeter/internal/privilege"
)

const pamConfigDir = "/etc/pam.d"

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe logind, PAM and the audit trail before a login",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		m := health.NewMonitor()
		m.RunAll(cmd.Context(), time.Duration(cfg.ManagerCallTimeoutSeconds)*time.Second, preflightProbes(cfg)...)
		for _, c := range m.All() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-10s %s\n", c.Name, c.Status, c.Message)
		}
		if m.Overall() == health.Unhealthy {
			exitCode = 1
			return fmt.Errorf("preflight failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func preflightProbes(cfg *config.Config) []health.Probe {
	return []health.Probe{
		{Name: "logind", Run: func(ctx context.Context) (health.Status, string) {
			client, err := login1.Dial(ctx, 0)
			if err != nil {
				return health.Unhealthy, err.Error()
			}
			defer client.Close()
			sessions, err := client.ListSessions(ctx)
			if err != nil {
				return health.Unhealthy, err.Error()
			}
			return health.Healthy, fmt.Sprintf("%d session(s)", len(sessions))
		}},
		{Name: "pam", Run: func(context.Context) (health.Status, string) {
			path := filepath.Join(pamConfigDir, cfg.PAMService)
			if _, err := os.Stat(path); err != nil {
				return health.Unhealthy, err.Error()
			}
			return health.Healthy, path
		}},
		{Name: "privilege", Run: func(context.Context) (health.Status, string) {
			if privilege.IsRunningAsRoot() {
				return health.Healthy, "running as root"
			}
			if cfg.DropPrivileges {
				return health.Degraded, "not root; programs will run as the broker's user"
			}
			return health.Healthy, "not root"
		}},
		{Name: "audit", Run: func(context.Context) (health.Status, string) {
			if !cfg.AuditEnabled {
				return health.Healthy, "disabled"
			}
			dir := filepath.Dir(cfg.AuditPath)
			if err := unix.Access(dir, unix.W_OK); err != nil {
				return health.Degraded, fmt.Sprintf("%s not writable: %v", dir, err)
			}
			return health.Healthy, cfg.AuditPath
		}},
	}
}
