package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"swaplace/cmd/internal/passphrase"
	swcrypto "swaplace/crypto"
	"swaplace/services/swapd/client"
)

const (
	envPrefix          = "SWAPLACE"
	passphraseEnv      = "SWAPLACE_KEYSTORE_PASSPHRASE"
	defaultServer      = "http://localhost:7075"
	defaultCallTimeout = 30 * time.Second
)

// cli carries the state shared by every subcommand.
type cli struct {
	v          *viper.Viper
	passphrase *passphrase.Source
	cfgFile    string
}

func newRootCmd() *cobra.Command {
	app := &cli{
		v:          viper.New(),
		passphrase: passphrase.NewSource(passphraseEnv, "keystore passphrase"),
	}

	root := &cobra.Command{
		Use:   "swaplace-cli",
		Short: "Create, inspect, and settle Swaplace swaps",
		Long: `swaplace-cli talks to a swapd daemon to create, accept, and cancel
peer-to-peer swaps. The config and asset codecs run offline.

Configuration is read from flags, SWAPLACE_* environment variables, and
an optional .swaplace-cli.yaml in the working or home directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.cfgFile, "config", "", "config file (default is ./.swaplace-cli.yaml or $HOME/.swaplace-cli.yaml)")
	flags.String("server", defaultServer, "swapd base URL")
	flags.String("keystore", "", "path to an encrypted keystore file used for signing")
	flags.Bool("json", false, "print machine readable JSON")
	flags.Duration("timeout", defaultCallTimeout, "request timeout")
	for _, name := range []string{"server", "keystore", "json", "timeout"} {
		_ = app.v.BindPFlag(name, flags.Lookup(name))
	}
	app.v.SetDefault("server", defaultServer)
	app.v.SetDefault("timeout", defaultCallTimeout)

	root.AddCommand(
		newConfigCmd(app),
		newAssetCmd(app),
		newSwapCmd(app),
		newTokenCmd(app),
		newAccountCmd(app),
		newEngineCmd(app),
		newKeyCmd(app),
	)
	return root
}

func (a *cli) loadConfig() error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName(".swaplace-cli")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (a *cli) jsonOutput() bool { return a.v.GetBool("json") }

// signingKey resolves the caller key from SWAPLACE_PRIVATE_KEY or the keystore.
func (a *cli) signingKey() (*swcrypto.PrivateKey, error) {
	if raw := strings.TrimSpace(a.v.GetString("private_key")); raw != "" {
		return swcrypto.PrivateKeyFromHex(raw)
	}
	path := strings.TrimSpace(a.v.GetString("keystore"))
	if path == "" {
		return nil, errors.New("no signing key: set SWAPLACE_PRIVATE_KEY or --keystore")
	}
	pass, err := a.passphrase.Get()
	if err != nil {
		return nil, err
	}
	return swcrypto.LoadFromKeystore(path, pass)
}

// client builds a daemon client. Read-only commands pass signed=false and may
// run without a key.
func (a *cli) client(signed bool) (*client.Client, error) {
	server := strings.TrimSpace(a.v.GetString("server"))
	if server == "" {
		return nil, errors.New("server URL is required")
	}
	if !signed {
		return client.New(server, nil), nil
	}
	key, err := a.signingKey()
	if err != nil {
		return nil, err
	}
	return client.New(server, key), nil
}

// call runs fn under the configured timeout with a spinner on stderr.
func (a *cli) call(cmd *cobra.Command, message string, fn func(ctx context.Context) error) error {
	timeout := a.v.GetDuration("timeout")
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if !a.jsonOutput() {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = " " + message
		s.Start()
		defer s.Stop()
	}
	return fn(ctx)
}

// emit prints value as JSON in --json mode, otherwise runs human.
func (a *cli) emit(cmd *cobra.Command, value any, human func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.jsonOutput() {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	human(out)
	return nil
}

func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", color.CyanString("%-12s", label+":"), value)
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, color.GreenString("✓ %s", msg))
}

func printError(w io.Writer, err error) {
	var apiErr *client.Error
	if errors.As(err, &apiErr) && apiErr.Class != "" {
		fmt.Fprintf(w, "%s %s (%s)\n", color.RedString("✗ Error:"), apiErr.Message, apiErr.Class)
		return
	}
	fmt.Fprintf(w, "%s %v\n", color.RedString("✗ Error:"), err)
}
