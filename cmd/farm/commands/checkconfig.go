package commands

import (
	"fmt"
	"io"
	"slices"

	"steam-trade-farm/internal/model"
	"steam-trade-farm/internal/steamguard"

	"github.com/spf13/cobra"
)

// placeholderValues are the values shipped in env.example.
var placeholderValues = []string{
	"your_username_1",
	"your_username_2",
	"your_shared_secret_1_here=",
	"your_shared_secret_2_here=",
}

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Print the detected settings and report problems without logging on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig(cmd.OutOrStdout())
		},
	}
}

func checkConfig(w io.Writer) error {
	fmt.Fprintln(w, "Detected settings:")
	fmt.Fprintf(w, "  Game:        %d (context %s)\n", cfg.Farm.GameCode, cfg.Farm.ContextID)
	fmt.Fprintf(w, "  Account 1:   %s\n", cfg.Account1.Username)
	fmt.Fprintf(w, "  Account 2:   %s\n", cfg.Account2.Username)
	fmt.Fprintf(w, "  Max retries: %d\n", cfg.Farm.MaxRetries)
	fmt.Fprintf(w, "  Port:        %d\n", cfg.Server.Port)
	fmt.Fprintf(w, "  Cache:       %s\n", cfg.Cache.Type)
	if cfg.Sandbox.Driver == "mysql" {
		fmt.Fprintf(w, "  Platform:    %s (mysql %s:%d/%s)\n", cfg.Sandbox.Platform, cfg.Sandbox.MySQLHost, cfg.Sandbox.MySQLPort, cfg.Sandbox.MySQLName)
	} else {
		fmt.Fprintf(w, "  Platform:    %s (%s)\n", cfg.Sandbox.Platform, cfg.Sandbox.DBPath)
	}

	warnings := 0
	warn := func(format string, args ...any) {
		warnings++
		fmt.Fprintf(w, "WARNING: "+format+"\n", args...)
	}

	for _, acct := range []struct {
		label string
		creds model.Credentials
	}{{"account1", cfg.Account1}, {"account2", cfg.Account2}} {
		c := acct.creds
		fmt.Fprintf(w, "  %s secrets: shared=%s identity=%s password=%s\n",
			acct.label, mask(c.SharedSecret), mask(c.IdentitySecret), mask(c.Password))

		if slices.Contains(placeholderValues, c.Username) || slices.Contains(placeholderValues, c.SharedSecret) {
			warn("%s still has example values from env.example", acct.label)
		}
		if c.SharedSecret != "" && !steamguard.ValidSecret(c.SharedSecret) {
			warn("%s shared secret is not valid base64", acct.label)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "Configuration is invalid:\n%v\n", err)
		return fmt.Errorf("invalid configuration")
	}
	if warnings > 0 {
		fmt.Fprintf(w, "Configuration loaded with %d warning(s).\n", warnings)
		return nil
	}
	fmt.Fprintln(w, "Configuration is valid. Start the farm with: farm run")
	return nil
}

// mask hides all but the last two characters of a secret.
func mask(secret string) string {
	switch {
	case secret == "":
		return "(unset)"
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-2:]
	}
}
