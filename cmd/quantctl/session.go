package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/quantdesk/internal/auth"
	"github.com/ashureev/quantdesk/internal/domain"
	"github.com/ashureev/quantdesk/internal/session"
	"github.com/ashureev/quantdesk/internal/store"
)

// userError turns gateway failures into the message the shell would show.
func userError(err error) error {
	if errors.Is(err, auth.ErrAuth) || errors.Is(err, auth.ErrNetwork) {
		return errors.New(auth.Message(err))
	}
	return err
}

func newLoginCmd(a *app) *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session in the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if creds.Username == "" || creds.Password == "" {
				return errors.New("--username and --password are required")
			}
			return a.withStore(func(kv store.Store) error {
				claims, err := a.gateway().Login(a.context(cmd), kv, creds)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s, session expires %s\n",
					claims.UserInfo.DisplayName(),
					time.Unix(claims.ExpiresAt, 0).UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account name")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&creds.Remember, "remember", false, "keep the credentials for prefill")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session; the profile is cleared even if the platform is down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(kv store.Store) error {
				a.gateway().Logout(a.context(cmd), kv)
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a platform account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.Username == "" || reg.Password == "" {
				return errors.New("--username and --password are required")
			}
			if err := a.gateway().Register(a.context(cmd), reg); err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s, you can now log in\n", reg.Username)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&reg.Username, "username", "u", "", "account name")
	f.StringVar(&reg.Password, "password", "", "account password")
	f.StringVar(&reg.Nickname, "nickname", "", "display name")
	f.StringVar(&reg.Email, "email", "", "email address")
	f.StringVar(&reg.Phone, "phone", "", "phone number")
	return cmd
}

func newWhoamiCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(kv store.Store) error {
				ctx := a.context(cmd)
				if refresh {
					u, err := a.gateway().CurrentUser(ctx, kv)
					if err != nil {
						return userError(err)
					}
					return printJSON(cmd.OutOrStdout(), u)
				}
				u, ok, err := auth.Snapshot(ctx, kv)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("not signed in")
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch from the platform instead of the snapshot")
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "user <id>",
		Short: "Print another user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return a.withStore(func(kv store.Store) error {
				u, err := a.gateway().UserByID(a.context(cmd), kv, id)
				if err != nil {
					return userError(err)
				}
				return printJSON(cmd.OutOrStdout(), u)
			})
		},
	}
}

func newGuardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "guard",
		Short: "Run the session guard against the profile, as a dashboard navigation would",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(kv store.Store) error {
				v := session.NewGuard(nil, nil, a.logger).Check(a.context(cmd), kv)
				out := cmd.OutOrStdout()
				if v.Allowed() {
					fmt.Fprintf(out, "allow (%s) user=%s\n", v.Reason, v.Claims.UserInfo.DisplayName())
					return nil
				}
				fmt.Fprintf(out, "redirect to %s (%s)\n", v.RedirectTo, v.Reason)
				return nil
			})
		},
	}
}
