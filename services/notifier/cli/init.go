package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultNotifierYAML = `# RecurFlow — Notifier config
# Priority: CLI flag > this file > default.

kafka_brokers: "localhost:9092"
group_id:      "recurflow-notifier"
log_level:     "info"

channels:     ["email"]   # email | webhook
metrics_addr: ":9093"

# --- Local (MailHog) ---
smtp_host: "localhost"
smtp_port: 1025
smtp_from: "noreply@recurflow.dev"
# smtp_username: ""
# smtp_password: ""

# --- Gmail ---
# smtp_host:     "smtp.gmail.com"
# smtp_port:     587
# smtp_from:     "your@gmail.com"
# smtp_username: "your@gmail.com"
# smtp_password: "abcdefghijklmnop"  # Gmail App Password (not your account password)

# webhook_url: "https://hooks.example.com/recurflow"  # required when webhook channel is enabled

# otel_endpoint: "localhost:4318"  # uncomment to enable OpenTelemetry tracing
`

func newInitCmd(serviceName, defaultYAML string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: fmt.Sprintf(`Write default configuration for %s.

If --config is given the file is written to that path.
Otherwise it is written to ~/.recurflow/%s.yaml.
Fails if the file already exists unless --force is passed.`, serviceName, serviceName),
		RunE: func(_ *cobra.Command, _ []string) error {
			dest := cfgFile
			if dest == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("home dir: %w", err)
				}
				dest = filepath.Join(home, ".recurflow", serviceName+".yaml")
			}

			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", dest, err)
				}
			}

			if err := os.WriteFile(dest, []byte(defaultYAML), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}
