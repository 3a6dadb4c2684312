package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/coverletter/internal/sessionid"
)

var shareCmd = &cobra.Command{
	Use:   "share <session>",
	Short: "Print a shareable result link",
	Args:  cobra.ExactArgs(1),
	RunE:  runShare,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <token-or-url>",
	Short: "Print the session id behind a token or result link",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var shareBase string

func init() {
	shareCmd.Flags().StringVar(&shareBase, "base", "", "Base URL of the web app (defaults to the API URL)")
	rootCmd.AddCommand(shareCmd, decodeCmd)
}

func runShare(cmd *cobra.Command, args []string) error {
	id, err := resolveSession(args[0])
	if err != nil {
		return err
	}
	base := shareBase
	if base == "" {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		base = cfg.APIURL
	}

	token, err := sessionid.Encode(id)
	if err != nil {
		return err
	}
	link, err := sessionid.ShareURL(base, id)
	if err != nil {
		return err
	}
	printer(cmd).PrintShare(id, token, link)
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	id, err := resolveSession(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
