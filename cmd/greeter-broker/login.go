package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dennisbonke/wayland-greeter/internal/auth"
	"github.com/Dennisbonke/wayland-greeter/internal/identity"
	"github.com/Dennisbonke/wayland-greeter/internal/sessionbroker"
)

var (
	loginUser     string
	loginSeat     string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login --user NAME [--seat SEAT] [--password-file FILE|-] -- COMMAND [ARGS...]",
	Short: "Authenticate a user and run a program in a new session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "user to log in")
	loginCmd.Flags().StringVar(&loginSeat, "seat", "", "seat for the session (default from config)")
	loginCmd.Flags().StringVar(&loginPassword, "password-file", "", "read the password from FILE, or stdin with -")
	loginCmd.MarkFlagRequired("user")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		exitCode = sessionbroker.ExitSetupFailed
		return err
	}
	defer closer.Close()

	secret, err := readSecret(loginPassword, os.Stdin, os.Stderr)
	if err != nil {
		exitCode = sessionbroker.ExitSetupFailed
		return err
	}

	al := openAudit(cfg)
	if al != nil {
		defer al.Close()
	}

	broker := sessionbroker.New(sessionbroker.Options{
		Config:   cfg,
		Users:    identity.System{},
		Verifier: auth.NewVerifier(auth.PAM{}, cfg.PAMService),
		Dial:     sessionbroker.Login1Dialer(time.Duration(cfg.ManagerCallTimeoutSeconds) * time.Second),
		Audit:    al,
	})

	code, err := broker.Login(cmd.Context(), sessionbroker.LoginRequest{
		Username: loginUser,
		Secret:   secret,
		Seat:     loginSeat,
		Command:  args,
	})
	exitCode = code
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), sessionbroker.UserMessage(err))
	}
	return nil
}
