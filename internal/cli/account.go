package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/places/domain"
)

// sessionView is what account commands print. Tokens stay in the store.
type sessionView struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func newSessionView(user *domain.User, s *domain.Session) sessionView {
	v := sessionView{}
	if user != nil {
		v.UserID = user.ID
		v.Email = user.Email
		v.Username = user.Username()
		v.AvatarURL = user.AvatarURL()
	}
	if s != nil {
		v.ExpiresAt = s.Expiry().UTC()
	}
	return v
}

func passwordFlag(cmd *cobra.Command) string {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("PLACES_PASSWORD")
	}
	return password
}

// NewSignupCmd creates the "signup" subcommand.
func NewSignupCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and its profile",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			username, _ := cmd.Flags().GetString("username")
			avatar, _ := cmd.Flags().GetString("avatar")

			s, err := rt.auth.Register(ctx, email, passwordFlag(cmd), username)
			if err != nil {
				return err
			}
			if username == "" {
				username = s.User.Username()
			}
			profile, err := rt.profiles.CompleteRegistration(ctx, username, avatar)
			if err != nil {
				return err
			}

			view := newSessionView(rt.client.Auth.GetUser(ctx), s)
			view.Username = profile.Username
			view.AvatarURL = deref(profile.AvatarURL)
			return render(cmd, view, message("Registered %s as %s", view.Email, view.Username))
		}),
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (or PLACES_PASSWORD)")
	cmd.Flags().String("username", "", "Public username (defaults to the email's local part)")
	cmd.Flags().String("avatar", "", "Path to an avatar image")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewLoginCmd creates the "login" subcommand.
func NewLoginCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			s, err := rt.auth.Login(ctx, email, passwordFlag(cmd))
			if err != nil {
				return err
			}
			view := newSessionView(s.User, s)
			return render(cmd, view, message("Signed in as %s", view.Email))
		}),
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (or PLACES_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewLogoutCmd creates the "logout" subcommand.
func NewLogoutCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			if err := rt.auth.Logout(ctx); err != nil {
				return err
			}
			return render(cmd, map[string]bool{"signed_out": true}, message("Signed out"))
		}),
	}
}

// NewWhoamiCmd creates the "whoami" subcommand.
func NewWhoamiCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			user, err := rt.auth.CurrentUser(ctx)
			if err != nil {
				return err
			}
			view := newSessionView(user, rt.client.Auth.GetSession(ctx))
			return render(cmd, view, func(w io.Writer) error {
				return table(w, []string{"ID", "EMAIL", "USERNAME", "EXPIRES"}, [][]string{{
					view.UserID, view.Email, view.Username, view.ExpiresAt.Format(time.RFC3339),
				}})
			})
		}),
	}
}

// NewResetPasswordCmd creates the "reset-password" subcommand.
func NewResetPasswordCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Send a password recovery email",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			if err := rt.auth.ResetPassword(ctx, args[0]); err != nil {
				return err
			}
			return render(cmd, map[string]string{"sent_to": args[0]}, message("Recovery email sent to %s", args[0]))
		}),
	}
}

// NewProfileCmd creates the "profile" command group.
func NewProfileCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the signed-in user's profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the profile row",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			user, err := rt.auth.CurrentUser(ctx)
			if err != nil {
				return err
			}
			profile, err := rt.profiles.GetProfile(ctx, user.ID)
			if err != nil {
				return err
			}
			return render(cmd, profile, profileText(profile))
		}),
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Change the username or avatar",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			username, _ := cmd.Flags().GetString("username")
			avatar, _ := cmd.Flags().GetString("avatar")
			profile, err := rt.profiles.UpdateProfile(ctx, username, avatar)
			if err != nil {
				return err
			}
			return render(cmd, profile, profileText(profile))
		}),
	}
	update.Flags().String("username", "", "New username")
	update.Flags().String("avatar", "", "Path to a new avatar image")

	cmd.AddCommand(show, update)
	return cmd
}

func profileText(p *domain.Profile) func(io.Writer) error {
	return func(w io.Writer) error {
		return table(w, []string{"ID", "USERNAME", "AVATAR"}, [][]string{{p.ID, p.Username, deref(p.AvatarURL)}})
	}
}
