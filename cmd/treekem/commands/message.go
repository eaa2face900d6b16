package commands

import (
	"fmt"
	"os"

	syntax "github.com/cisco/go-tls-syntax"
	"github.com/spf13/cobra"

	"treekem"
)

func sendCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "send <group> <message>",
		Short: "Encrypt an application message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			msg, err := member.EncryptApplicationMessage(args[0], []byte(args[1]))
			if err != nil {
				return err
			}
			data, err := syntax.Marshal(*msg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			fmt.Printf("Message %d written to %s\n", msg.Counter, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file for the encrypted message")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv <group> <message-file>",
		Short: "Decrypt an application message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadMember(); err != nil {
				return err
			}

			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var msg treekem.EncryptedMessage
			if _, err := syntax.Unmarshal(data, &msg); err != nil {
				return fmt.Errorf("bad message file: %v", err)
			}

			pt, err := member.DecryptApplicationMessage(args[0], &msg)
			if err != nil {
				return err
			}
			if err := saveMember(); err != nil {
				return err
			}

			fmt.Printf("%s\n", pt)
			return nil
		},
	}
}
