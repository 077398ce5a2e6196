package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/wizard"
)

func newPasswordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Password maintenance",
	}
	cmd.AddCommand(newPasswordChangeCommand())
	return cmd
}

func newPasswordChangeCommand() *cobra.Command {
	var current, next, confirm string
	cmd := &cobra.Command{
		Use:   "change [phone]",
		Short: "Verify the current password and set a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if confirm == "" {
				confirm = next
			}

			w := wizard.NewPasswordWizard(args[0])
			res, err := w.ValidateCredentials(cmd.Context(), rt.users, "", current)
			if err != nil {
				return report(cmd, rt, err, "Failed to validate credentials")
			}
			if !res.OK {
				return stepOutcome(cmd, rt, res)
			}

			res, err = w.Change(cmd.Context(), rt.users, next, confirm)
			if err != nil {
				return report(cmd, rt, err, "Failed to change password")
			}
			return stepOutcome(cmd, rt, res)
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password")
	cmd.Flags().StringVar(&next, "new", "", "new password (6-10 characters)")
	cmd.Flags().StringVar(&confirm, "confirm", "", "confirmation of the new password (defaults to --new)")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

// stepOutcome prints a wizard step result and fails the command when the
// service refused it.
func stepOutcome(cmd *cobra.Command, rt *runtime, res wizard.Result) error {
	if !res.OK {
		_ = rt.notifier.Send(cmd.Context(), notification.Failure("Error", res.Message))
		return errors.New(res.Message)
	}
	return rt.notifier.Send(cmd.Context(), notification.Success("Success", res.Message))
}
