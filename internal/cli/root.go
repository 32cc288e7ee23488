// Package cli implements placesctl, a command line client for the places
// backend.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the placesctl command tree. opts replaces environment
// derived dependencies, mostly in tests.
func NewRootCmd(opts Options) *cobra.Command {
	root := &cobra.Command{
		Use:   "placesctl",
		Short: "Client for the places backend",
		Long:  "placesctl signs in to the places backend and browses, rates and publishes places from the terminal.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("output", "o", formatText, "Output format: text | json | yaml")
	root.PersistentFlags().StringSlice("env-file", nil, "Env files to load instead of .env")

	root.AddCommand(
		NewSignupCmd(opts),
		NewLoginCmd(opts),
		NewLogoutCmd(opts),
		NewWhoamiCmd(opts),
		NewResetPasswordCmd(opts),
		NewProfileCmd(opts),
		NewPlacesCmd(opts),
		NewReviewsCmd(opts),
		NewAttractionsCmd(opts),
		NewFavoritesCmd(opts),
		NewUploadCmd(opts),
		NewStorageCmd(opts),
		NewThemeCmd(opts),
		NewStatusCmd(opts),
		NewReconcileCmd(opts),
		NewMigrateCmd(opts),
		NewMockCmd(opts),
	)
	return root
}
