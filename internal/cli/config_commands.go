package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/suqaba/suqaba-cli/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage suqaba configuration",
		Long: `Configuration management commands for suqaba.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	return config.GetDefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for suqaba.

The configuration is saved to ~/.config/suqaba/config.ini
(or the path given with --config). Press Enter to keep a default.

Use --force to overwrite an existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "Suqaba Configuration Setup")
			fmt.Fprintln(out, "==========================")
			fmt.Fprintln(out)

			cfg, err := promptConfig(newPrompter(cmd), out)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			GetLogger().Info().Str("path", path).Msg("configuration saved")
			fmt.Fprintf(out, "\n✓ Configuration saved to %s\n", path)
			fmt.Fprintln(out, "Next: run 'suqaba login'")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// promptConfig asks for each setting, offering the defaults.
func promptConfig(p *prompter, out io.Writer) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	if cfg.APIBaseURL, err = p.line("API Base URL", cfg.APIBaseURL); err != nil {
		return nil, err
	}
	tf, err := p.line("Token file", cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	cfg.TokenFile = config.ExpandHome(tf)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Client Settings (press Enter for defaults)")
	fmt.Fprintln(out, "------------------------------------------")

	poll, err := promptInt(p, "Poll interval in seconds", int(cfg.PollInterval/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.PollInterval = time.Duration(poll) * time.Second

	if cfg.ListLimit, err = promptInt(p, "Dashboard list limit", cfg.ListLimit); err != nil {
		return nil, err
	}
	maxMB, err := promptInt(p, "Max upload size in MB", int(cfg.MaxUploadBytes/(1024*1024)))
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxMB) * 1024 * 1024

	fmt.Fprintln(out)
	useProxy, err := p.confirm("Configure proxy?")
	if err != nil {
		return nil, err
	}
	if useProxy {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Proxy Configuration")
		fmt.Fprintln(out, "-------------------")
		fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
		if cfg.ProxyMode, err = p.line("Proxy mode", "system"); err != nil {
			return nil, err
		}
		switch strings.ToLower(cfg.ProxyMode) {
		case "basic", "ntlm":
			if cfg.ProxyHost, err = p.required("Proxy host"); err != nil {
				return nil, err
			}
			if cfg.ProxyPort, err = promptInt(p, "Proxy port", 8080); err != nil {
				return nil, err
			}
			if cfg.ProxyUser, err = p.line("Proxy user", ""); err != nil {
				return nil, err
			}
			if cfg.NoProxy, err = p.line("Hosts to bypass (comma-separated)", ""); err != nil {
				return nil, err
			}
		}
	}

	return cfg, nil
}

func promptInt(p *prompter, label string, def int) (int, error) {
	for {
		s, err := p.line(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(s)
		if err == nil && v > 0 {
			return v, nil
		}
		fmt.Fprintf(p.out, "  Error: %s must be a positive number\n", strings.ToLower(label))
	}
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration after applying the config file,
environment variables and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg, configPath())
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Config file:          %s\n", path)
	fmt.Fprintf(w, "API Base URL:         %s\n", cfg.APIBaseURL)
	fmt.Fprintf(w, "Token file:           %s\n", cfg.TokenFile)
	if _, err := os.Stat(cfg.TokenFile); err == nil {
		fmt.Fprintln(w, "Saved session:        yes")
	} else {
		fmt.Fprintln(w, "Saved session:        no")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Client Settings:")
	fmt.Fprintf(w, "  Poll interval:      %s\n", cfg.PollInterval)
	fmt.Fprintf(w, "  List limit:         %d\n", cfg.ListLimit)
	fmt.Fprintf(w, "  Max upload size:    %s\n", humanize.IBytes(uint64(cfg.MaxUploadBytes)))
	if cfg.MinErrorThreshold > 0 {
		fmt.Fprintf(w, "  Min error threshold: %s\n", formatThreshold(cfg.MinErrorThreshold))
	}
	fmt.Fprintf(w, "  Requests/second:    %g\n", cfg.RequestsPerSecond)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Proxy Settings:")
	fmt.Fprintf(w, "  Mode:               %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(w, "  Host:               %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(w, "  User:               %s\n", cfg.ProxyUser)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(w, "  Bypass:             %s\n", cfg.NoProxy)
	}
	if cfg.LogFile != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Log file:             %s\n", cfg.LogFile)
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "(file does not exist yet; run 'suqaba config init')")
			}
			return nil
		},
	}
}
