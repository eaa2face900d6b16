package commands

import (
	"fmt"
	"os"

	syntax "github.com/cisco/go-tls-syntax"
	"github.com/spf13/cobra"
)

// refresh <group> --out <file>: rotate this member's leaf key and path, for
// recovery after a suspected compromise.
func refreshCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "refresh <group>",
		Short: "Rotate this member's leaf key and path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			update, err := member.KeyRefresh(args[0])
			if err != nil {
				return err
			}
			data, err := syntax.Marshal(*update)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			g := member.Groups[args[0]]
			fmt.Printf("Refreshed leaf %d.\nUpdate for the group written to %s\n",
				g.LeafID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file for the update")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
