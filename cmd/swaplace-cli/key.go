package main

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	swcrypto "swaplace/crypto"
)

type keyInfo struct {
	Address  string `json:"address"`
	Keystore string `json:"keystore,omitempty"`
}

func newKeyCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage signing keys",
	}

	var lightKDF bool
	newKey := &cobra.Command{
		Use:   "new <keystore-path>",
		Short: "Generate a key and write it to an encrypted keystore file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			if path == "" {
				return errors.New("keystore path is required")
			}
			pass, err := app.passphrase.Get()
			if err != nil {
				return err
			}
			key, err := swcrypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			addr, err := swcrypto.SaveToKeystoreWithParams(path, key, pass, scryptParams(lightKDF))
			if err != nil {
				return err
			}
			info := keyInfo{Address: addr.Hex(), Keystore: path}
			return app.emit(cmd, info, func(w io.Writer) {
				printSuccess(w, "Key written to "+path)
				printField(w, "Address", info.Address)
			})
		},
	}

	newKey.Flags().BoolVar(&lightKDF, "light-kdf", false, "use cheaper scrypt parameters (weaker protection for the key file)")

	address := &cobra.Command{
		Use:   "address",
		Short: "Print the address of the configured signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := app.signingKey()
			if err != nil {
				return err
			}
			info := keyInfo{Address: key.Address().Hex(), Keystore: app.v.GetString("keystore")}
			return app.emit(cmd, info, func(w io.Writer) {
				printField(w, "Address", info.Address)
			})
		},
	}

	cmd.AddCommand(newKey, address)
	return cmd
}

func scryptParams(light bool) swcrypto.ScryptParams {
	if light {
		return swcrypto.LightScrypt
	}
	return swcrypto.StandardScrypt
}
