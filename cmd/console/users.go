package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsdesk/userconsole/internal/notification"
	"github.com/opsdesk/userconsole/internal/transport"
	"github.com/opsdesk/userconsole/internal/users"
	"github.com/opsdesk/userconsole/internal/validation"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and manage user accounts",
	}
	cmd.AddCommand(
		newUsersListCommand(),
		newUsersGetCommand(),
		newUsersCreateCommand(),
		newUsersUpdateCommand(),
		newUsersDeleteCommand(),
	)
	return cmd
}

func newUsersListCommand() *cobra.Command {
	var (
		search  string
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			params := map[string]string{}
			for _, f := range filters {
				k, v, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("filter %q must be key=value", f)
				}
				params[k] = v
			}

			records, err := rt.users.List(cmd.Context(), params)
			if err != nil {
				return report(cmd, rt, err, "Failed to fetch users")
			}
			return printJSON(cmd.OutOrStdout(), users.Search(records, search))
		},
	}
	cmd.Flags().StringVarP(&search, "query", "q", "", "case-insensitive substring search")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "server-side filter key=value (repeatable)")
	return cmd
}

func newUsersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [phone]",
		Short: "Show one user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			phone, err := phoneArg(args[0])
			if err != nil {
				return err
			}

			records, err := rt.users.GetByPhone(cmd.Context(), phone)
			if err != nil {
				return report(cmd, rt, err, "Failed to fetch user")
			}
			if len(records) == 0 {
				return report(cmd, rt, users.ErrUserNotFound, "User not found")
			}
			return printJSON(cmd.OutOrStdout(), records[0])
		},
	}
}

func newUsersCreateCommand() *cobra.Command {
	var req users.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			req = req.WithDefaults()
			if err := validation.CreateUser(req); err != nil {
				return err
			}

			resp, err := rt.users.Create(cmd.Context(), req)
			if err != nil {
				return report(cmd, rt, err, "Failed to create user")
			}
			return outcome(cmd, rt, resp, "User created", "Failed to create user")
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "display name")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.Phone, "phone", "", "10-digit phone number")
	f.StringVar(&req.Password, "password", "", "initial password (6-10 characters)")
	f.StringVar(&req.Role, "role", string(users.DefaultRole), "picking, in-bound, admin or all-ops")
	f.StringVar(&req.Type, "type", string(users.DefaultType), "admin, read_only or read_write")
	for _, name := range []string{"name", "email", "phone", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUsersUpdateCommand() *cobra.Command {
	var req users.UpdateUserRequest
	cmd := &cobra.Command{
		Use:   "update [phone]",
		Short: "Change fields of a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			phone, err := phoneArg(args[0])
			if err != nil {
				return err
			}
			if err := validation.UpdateUser(phone, req); err != nil {
				return err
			}

			resp, err := rt.users.Update(cmd.Context(), phone, req)
			if err != nil {
				return report(cmd, rt, err, "Failed to update user")
			}
			return outcome(cmd, rt, resp, "User updated", "Failed to update user")
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "new display name")
	f.StringVar(&req.Email, "email", "", "new email address")
	f.StringVar(&req.Password, "password", "", "new password (6-10 characters)")
	f.StringVar(&req.Role, "role", "", "new role")
	f.StringVar(&req.Type, "type", "", "new account type")
	return cmd
}

func newUsersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [phone]",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(os.Stderr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			phone, err := phoneArg(args[0])
			if err != nil {
				return err
			}

			resp, err := rt.users.Delete(cmd.Context(), phone)
			if err != nil {
				return report(cmd, rt, err, "Failed to delete user")
			}
			return outcome(cmd, rt, resp, "User deleted", "Failed to delete user")
		},
	}
}

// phoneArg reads a phone given on the command line. Separators are dropped but
// the digits are not truncated, so an overlong number is rejected.
func phoneArg(arg string) (string, error) {
	phone := validation.Digits(arg, 0)
	if err := validation.Phone(phone); err != nil {
		return "", err
	}
	return phone, nil
}

// report prints a failure notice and returns err so the command exits non-zero.
func report(cmd *cobra.Command, rt *runtime, err error, fallback string) error {
	_ = rt.notifier.Send(cmd.Context(), notification.Failure("Error", transport.MessageOf(err, fallback)))
	return err
}

// outcome prints the service verdict on a mutation.
func outcome(cmd *cobra.Command, rt *runtime, resp transport.Response, title, fallback string) error {
	if !resp.Succeeded() {
		msg := resp.Message
		if msg == "" {
			msg = fallback
		}
		_ = rt.notifier.Send(cmd.Context(), notification.Failure("Error", msg))
		return fmt.Errorf("%s", msg)
	}
	return rt.notifier.Send(cmd.Context(), notification.Success(title, resp.Message))
}
