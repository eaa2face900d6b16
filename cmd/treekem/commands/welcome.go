package commands

import (
	"fmt"
	"os"

	syntax "github.com/cisco/go-tls-syntax"
	"github.com/spf13/cobra"

	"treekem"
)

// welcome <group> <credential-file> --out <file>: invite the credential's
// holder.  The welcome file is only readable by that holder's ECDH key.
func welcomeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "welcome <group> <credential-file>",
		Short: "Invite a credential holder into a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			credData, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var cred treekem.Credential
			if _, err := syntax.Unmarshal(credData, &cred); err != nil {
				return fmt.Errorf("bad credential file: %v", err)
			}

			welcome, err := member.SendWelcomeMessage(args[0], cred)
			if err != nil {
				return err
			}
			data, err := syntax.Marshal(welcome)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}

			fmt.Printf("Welcome for %q written to %s\n", cred.Name, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file for the welcome message")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
