package commands

import (
	"fmt"
	"os"

	syntax "github.com/cisco/go-tls-syntax"
	"github.com/spf13/cobra"

	"treekem"
)

// apply-update <group> <update-file> --leaf <id>: fold another member's
// path update into the local tree.  The leaf id travels out of band; for a
// join it is always the leftmost leaf that was open before the join.
func applyUpdateCmd() *cobra.Command {
	var leaf uint32

	cmd := &cobra.Command{
		Use:   "apply-update <group> <update-file>",
		Short: "Apply another member's path update",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var update treekem.UpdateMessage
			if _, err := syntax.Unmarshal(data, &update); err != nil {
				return fmt.Errorf("bad update file: %v", err)
			}

			if err := member.ApplyUpdatePath(args[0], treekem.NodeID(leaf), &update); err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			fmt.Printf("Applied update from leaf %d to %q\n", leaf, args[0])
			return nil
		},
	}
	cmd.Flags().Uint32Var(&leaf, "leaf", 0, "leaf id of the updating member")
	_ = cmd.MarkFlagRequired("leaf")
	return cmd
}
