package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdesk/userconsole/internal/otp"
	"github.com/opsdesk/userconsole/internal/wizard"
)

func newOTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Issue and check one-time passwords",
	}
	cmd.AddCommand(newOTPGenerateCommand(), newOTPValidateCommand())
	return cmd
}

func newOTPGenerateCommand() *cobra.Command {
	var userType, role string
	cmd := &cobra.Command{
		Use:   "generate [phone]",
		Short: "Send a code to a phone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w := wizard.NewOTPWizard()
			w.SetPhone(args[0])
			w.SetType(userType)
			w.SetRole(role)

			res, err := w.Generate(cmd.Context(), rt.otp)
			if err != nil {
				return report(cmd, rt, err, "Failed to generate OTP")
			}
			return stepOutcome(cmd, rt, res)
		},
	}
	cmd.Flags().StringVar(&userType, "type", string(otp.DefaultType), "account type sent with the request")
	cmd.Flags().StringVar(&role, "role", string(otp.DefaultRole), "role sent with the request")
	return cmd
}

func newOTPValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [phone] [code]",
		Short: "Check a code typed back by the user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w := wizard.NewOTPWizard()
			w.Step = wizard.StepValidate
			w.SetValidatePhone(args[0])
			w.SetOTP(args[1])

			res, err := w.Validate(cmd.Context(), rt.otp)
			if err != nil {
				return report(cmd, rt, err, "Failed to validate OTP")
			}
			if err := printJSON(cmd.OutOrStdout(), w.Outcome); err != nil {
				return err
			}
			return stepOutcome(cmd, rt, res)
		},
	}
}
