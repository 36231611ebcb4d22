package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rainy"
	"rainy/config"
	"rainy/internal/catalog"
	"rainy/internal/logging"
	"rainy/internal/observability"
	"rainy/internal/providers"
)

type globalFlags struct {
	config   string
	provider string
	model    string
	metrics  bool
	json     bool
}

type commandContext struct {
	flags *globalFlags

	config   *config.Config
	client   *rainy.Client
	registry *prometheus.Registry
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	cfg, err := config.Load(strings.TrimSpace(c.flags.config))
	if err != nil {
		return nil, err
	}
	c.config = cfg
	return cfg, nil
}

// ensureClient builds the client on first use. Without any configured key
// the Rainy key is read from the terminal.
func (c *commandContext) ensureClient(cmd *cobra.Command) (*rainy.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	if len(providers.ResolveProviders(cfg)) == 0 {
		key, err := promptAPIKey(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		cfg.Providers["rainy"] = config.RawProviderConfig{Type: "rainy", APIKey: key}
	}

	opts := []rainy.Option{rainy.WithLogger(logger)}
	if c.flags.metrics {
		c.registry = prometheus.NewRegistry()
		opts = append(opts, rainy.WithMetrics(c.registry))
	}
	client, err := rainy.New(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func (c *commandContext) ensureAccount(cmd *cobra.Command) (*rainy.Account, error) {
	client, err := c.ensureClient(cmd)
	if err != nil {
		return nil, err
	}
	account, err := client.Account()
	if errors.Is(err, rainy.ErrNoAccount) {
		return nil, errors.New("this command needs a Rainy API key: set RAINY_API_KEY")
	}
	return account, err
}

// model resolves the model flag, then the configured default
func (c *commandContext) model() string {
	if m := strings.TrimSpace(c.flags.model); m != "" {
		return m
	}
	if c.config != nil && c.config.Defaults.Model != "" {
		return c.config.Defaults.Model
	}
	return catalog.Gemini25Flash
}

// close dumps the metrics registry when asked to and releases the client
func (c *commandContext) close(cmd *cobra.Command) error {
	if c.client == nil {
		return nil
	}
	if c.registry != nil {
		if err := observability.WriteText(cmd.ErrOrStderr(), c.registry); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to write metrics: %v\n", err)
		}
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func promptAPIKey(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no API key configured: set RAINY_API_KEY or add a provider to the config file")
	}
	fmt.Fprint(w, "Rainy API key: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read API key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", errors.New("no API key entered")
	}
	return key, nil
}
