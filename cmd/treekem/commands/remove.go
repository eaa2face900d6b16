package commands

import (
	"fmt"
	"os"

	syntax "github.com/cisco/go-tls-syntax"
	"github.com/spf13/cobra"

	"treekem"
)

// remove <group> --node <id> --out <file>: blank a member's node locally
// and write the blank messages the rest of the group needs.
func removeCmd() *cobra.Command {
	var node uint32
	var out string

	cmd := &cobra.Command{
		Use:   "remove <group>",
		Short: "Remove a member and emit blank messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			msgs, err := member.BlankNode(args[0], treekem.NodeID(node))
			if err != nil {
				return err
			}
			data, err := syntax.Marshal(treekem.BlankMessageList{Messages: msgs})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			fmt.Printf("Removed node %d from %q.\nBlank messages written to %s\n",
				node, args[0], out)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&node, "node", 0, "node id of the member to remove")
	cmd.Flags().StringVar(&out, "out", "", "output file for the blank messages")
	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func applyBlanksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-blanks <group> <blanks-file>",
		Short: "Apply a removal produced elsewhere",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var list treekem.BlankMessageList
			if _, err := syntax.Unmarshal(data, &list); err != nil {
				return fmt.Errorf("bad blank message file: %v", err)
			}

			if err := member.ApplyBlankMessages(args[0], list.Messages); err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			fmt.Printf("Applied removal to %q\n", args[0])
			return nil
		},
	}
}
