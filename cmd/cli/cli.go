// Package cli wires the opgpcard driver up to a cobra command tree: select,
// list, read, pubkey, sign, decipher and serial, plus the interactive cui
// front-end when invoked with no subcommand.
package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/malivvan/opgpcard/card"
	"github.com/malivvan/opgpcard/cui"
	"github.com/malivvan/opgpcard/kdbx"
	"github.com/malivvan/opgpcard/mhex"
	"github.com/malivvan/opgpcard/scard"
	"github.com/spf13/cobra"
)

const defaultKeyring = "~/.opgpcard.kdbx"

// connect establishes a PC/SC context, connects to the one reader with a
// card present (failing when there is none or more than one), and brings up
// a Session against it. The returned closer
// tears the session down and releases the reader and context.
func connect() (*card.Session, func(), error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("establish context: %w", err)
	}
	readers, err := ctx.ListReadersWithCard()
	if err != nil {
		ctx.Release()
		return nil, nil, err
	}
	if len(readers) == 0 {
		ctx.Release()
		return nil, nil, fmt.Errorf("no card present")
	}
	if len(readers) > 1 {
		ctx.Release()
		return nil, nil, fmt.Errorf("multiple readers present, not supported")
	}
	c, err := readers[0].Connect()
	if err != nil {
		ctx.Release()
		return nil, nil, err
	}

	sess := card.NewSession(c.AsTransport(), card.DefaultPublicKeyEncoder{})
	if err := sess.Init(); err != nil {
		c.Disconnect()
		ctx.Release()
		return nil, nil, fmt.Errorf("init: %w", err)
	}
	closer := func() {
		sess.Finish()
		c.Disconnect()
		ctx.Release()
	}
	return sess, closer, nil
}

// New builds the root opgpcard command.
func New(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "opgpcard",
		Short:   "an OpenPGP smart-card driver and inspection tool",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			keyring := cmd.Flag("keyring").Value.String()
			if strings.HasPrefix(keyring, "~") {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				return cmd.Flag("keyring").Value.Set(filepath.Join(home, strings.TrimPrefix(keyring, "~")))
			}
			if !strings.HasPrefix(keyring, "/") {
				workdir, err := os.Getwd()
				if err != nil {
					return err
				}
				return cmd.Flag("keyring").Value.Set(filepath.Join(workdir, keyring))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cui.Execute(version, cmd.Flag("keyring").Value.String())
		},
	}

	keyring := os.Getenv("OPGPCARD_KDBX")
	if keyring == "" {
		keyring = defaultKeyring
	}
	root.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}
	root.PersistentFlags().StringP("keyring", "k", keyring, "path to the nickname keyring file")

	root.AddCommand(
		versionCmd(),
		selectCmd(),
		listCmd(),
		readCmd(),
		pubkeyCmd(),
		signCmd(),
		decipherCmd(),
		serialCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cmd.Parent().Version)
		},
	}
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select [path]",
		Short: "select a file by its slash-separated DO path (e.g. 3F00/006E/0073)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closer, err := connect()
			if err != nil {
				return err
			}
			defer closer()

			path := "3F00"
			if len(args) == 1 {
				path = args[0]
			}
			tags, err := card.ParsePath(path)
			if err != nil {
				return err
			}
			fd, err := sess.SelectFile(tags)
			if err != nil {
				return err
			}
			fmt.Printf("selected %04X (kind=%v)\n", fd.ID, fd.Type)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "list the immediate children of the file at a slash-separated DO path (default 3F00)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closer, err := connect()
			if err != nil {
				return err
			}
			defer closer()

			path := "3F00"
			if len(args) == 1 {
				path = args[0]
			}
			tags, err := card.ParsePath(path)
			if err != nil {
				return err
			}
			if _, err := sess.SelectFile(tags); err != nil {
				return err
			}

			buf := make([]byte, 4096)
			n, err := sess.ListFiles(buf)
			if err != nil {
				return err
			}
			for i := 0; i+1 < n; i += 2 {
				fmt.Printf("%04X\n", uint16(buf[i])<<8|uint16(buf[i+1]))
			}
			return nil
		},
	}
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <tag>",
		Short: "read a data object by its 4-hex-digit tag (e.g. 005E)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseTag(args[0])
			if err != nil {
				return err
			}
			sess, closer, err := connect()
			if err != nil {
				return err
			}
			defer closer()

			data, err := sess.GetData(tag)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}
}

func pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey <sig|dec|auth>",
		Short: "print the PEM-encoded public key for a key slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := pemTagFor(args[0])
			if err != nil {
				return err
			}
			sess, closer, err := connect()
			if err != nil {
				return err
			}
			defer closer()

			pem, err := sess.GetData(tag)
			if err != nil {
				return err
			}
			fmt.Print(string(pem))
			return nil
		},
	}
}

func signCmd() *cobra.Command {
	var useAuthKey bool
	cmd := &cobra.Command{
		Use:   "sign <hex-digest>",
		Short: "compute a signature over a hex-encoded digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid hex digest: %w", err)
			}
			sess, closer, err := connect()
			if err != nil {
				return err
			}
			defer closer()

			ref := card.KeyRefSignature
			if useAuthKey {
				ref = card.KeyRefAuthentication
			}
			if err := sess.SetSecurityEnv(card.SecurityEnv{Operation: card.OpSign, KeyRef: []byte{ref}}); err != nil {
				return err
			}
			sig, err := sess.ComputeSignature(digest)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(sig))
			return nil
		},
	}
	cmd.Flags().BoolVar(&useAuthKey, "auth", false, "use the authentication key instead of the signature key")
	return cmd
}

func decipherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decipher <hex-ciphertext>",
		Short: "decipher a hex-encoded ciphertext with the decryption key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ciphertext, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("invalid hex ciphertext: %w", err)
			}
			sess, closer, err := connect()
			if err != nil {
				return err
			}
			defer closer()

			if err := sess.SetSecurityEnv(card.SecurityEnv{Operation: card.OpDecipher, KeyRef: []byte{card.KeyRefDecryption}}); err != nil {
				return err
			}
			plain, err := sess.Decipher(ciphertext)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(plain))
			return nil
		},
	}
}

func serialCmd() *cobra.Command {
	var nickname string
	cmd := &cobra.Command{
		Use:   "serial",
		Short: "print the card serial number, and optionally record a nickname for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closer, err := connect()
			if err != nil {
				return err
			}
			defer closer()

			raw, err := sess.CardCtl(card.CtlGetSerialNumber)
			if err != nil {
				return err
			}
			serialHex := hex.EncodeToString(raw)
			fmt.Printf("serial:  %s\n", serialHex)
			fmt.Printf("modhex:  %s\n", mhex.Encode(raw))
			fmt.Printf("type:    %s\n", sess.CardName())

			keyringPath := cmd.Flag("keyring").Value.String()
			passphrase := []byte(os.Getenv("OPGPCARD_PASSPHRASE"))
			if len(passphrase) == 0 {
				if nickname != "" {
					return fmt.Errorf("OPGPCARD_PASSPHRASE must be set to record a nickname")
				}
				return nil
			}
			ring, err := kdbx.Load(keyringPath, passphrase)
			if err != nil {
				return err
			}
			if nickname != "" {
				ring.SetNickname(serialHex, nickname)
				if err := ring.Save(keyringPath, passphrase); err != nil {
					return err
				}
			}
			if name, ok := ring.Nickname(serialHex); ok {
				fmt.Printf("nickname: %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nickname, "set-nickname", "", "record a nickname for this card's serial")
	return cmd
}

func parseTag(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid tag %q: %w", s, err)
	}
	return uint16(v), nil
}

func pemTagFor(slot string) (uint16, error) {
	switch strings.ToLower(slot) {
	case "sig":
		return 0xB601, nil
	case "dec":
		return 0xB801, nil
	case "auth":
		return 0xA401, nil
	default:
		return 0, fmt.Errorf("unknown key slot %q, want sig, dec or auth", slot)
	}
}
