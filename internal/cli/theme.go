package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastygo/places/domain"
)

type themeView struct {
	Mode  domain.ThemeMode `json:"mode"`
	Theme domain.ThemeMode `json:"theme"`
}

// NewThemeCmd creates the "theme" command group.
func NewThemeCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the appearance preference",
	}
	cmd.PersistentFlags().Bool("system-dark", false, "Treat the platform preference as dark")

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the saved mode and the theme it resolves to",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			themes, err := rt.themes(ctx)
			if err != nil {
				return err
			}
			systemDark, _ := cmd.Flags().GetBool("system-dark")
			view := themeView{Mode: themes.Mode(ctx), Theme: themes.Theme(ctx, systemDark)}
			return render(cmd, view, message("%s (%s)", view.Theme, view.Mode))
		}),
	}

	set := &cobra.Command{
		Use:       "set <light|dark|system>",
		Short:     "Save the appearance preference",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.ThemeLight), string(domain.ThemeDark), string(domain.ThemeSystem)},
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			themes, err := rt.themes(ctx)
			if err != nil {
				return err
			}
			mode := domain.ThemeMode(strings.ToLower(args[0]))
			if err := themes.SetMode(ctx, mode); err != nil {
				return err
			}
			systemDark, _ := cmd.Flags().GetBool("system-dark")
			view := themeView{Mode: mode, Theme: mode.Resolve(systemDark)}
			return render(cmd, view, message("Theme set to %s", mode))
		}),
	}

	toggle := &cobra.Command{
		Use:   "toggle",
		Short: "Switch between light and dark",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			themes, err := rt.themes(ctx)
			if err != nil {
				return err
			}
			systemDark, _ := cmd.Flags().GetBool("system-dark")
			next, err := themes.Toggle(ctx, systemDark)
			if err != nil {
				return err
			}
			return render(cmd, themeView{Mode: next, Theme: next}, message("Theme set to %s", next))
		}),
	}

	cmd.AddCommand(get, set, toggle)
	return cmd
}
