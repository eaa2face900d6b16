package commands

import (
	"fmt"
	"os"

	syntax "github.com/cisco/go-tls-syntax"
	"github.com/spf13/cobra"
)

// credential --out <file>: export the member's self-signed credential so a
// group member can pass it to welcome.
func credentialCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Export the member's credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			data, err := syntax.Marshal(member.Credential)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}

			fmt.Printf("Credential for %q written to %s\n", member.Pseudonym, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file for the credential")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
