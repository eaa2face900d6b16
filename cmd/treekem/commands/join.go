package commands

import (
	"fmt"
	"os"

	syntax "github.com/cisco/go-tls-syntax"
	"github.com/spf13/cobra"

	"treekem"
)

// join <welcome-file> --out <file>: join the group a welcome invites us to.
// The written update file must reach every existing member.
func joinCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "join <welcome-file>",
		Short: "Join a group from a welcome file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			welcomeData, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var welcome treekem.WelcomeMessage
			if _, err := syntax.Unmarshal(welcomeData, &welcome); err != nil {
				return fmt.Errorf("bad welcome file: %v", err)
			}

			name, update, err := member.JoinGroup(&welcome)
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

			g := member.Groups[name]
			fmt.Printf("Joined %q at leaf %d.\nUpdate for the group written to %s\n",
				name, g.LeafID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file for the join update")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
