package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/fastygo/places/domain"
)

// NewAttractionsCmd creates the "attractions" command group.
func NewAttractionsCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attractions",
		Short: "Manage curated attractions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List attractions",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			attractions, err := rt.attractions.List(ctx)
			if err != nil {
				return err
			}
			return render(cmd, attractions, attractionsText(attractions))
		}),
	}

	show := &cobra.Command{
		Use:   "show <attraction-id>",
		Short: "Show one attraction",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			a, err := rt.attractions.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, a, attractionsText([]domain.Attraction{*a}))
		}),
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create an attraction",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			a := &domain.Attraction{}
			a.Name, _ = cmd.Flags().GetString("name")
			a.Description, _ = cmd.Flags().GetString("description")
			a.Location, _ = cmd.Flags().GetString("location")
			if image, _ := cmd.Flags().GetString("image-url"); image != "" {
				a.ImageURL = &image
			}
			created, err := rt.attractions.Add(ctx, a)
			if err != nil {
				return err
			}
			return render(cmd, created, message("Added attraction %s (%s)", created.Name, created.ID))
		}),
	}
	add.Flags().String("name", "", "Attraction name")
	add.Flags().String("description", "", "Description")
	add.Flags().String("location", "", "Location")
	add.Flags().String("image-url", "", "Public image URL")
	_ = add.MarkFlagRequired("name")

	update := &cobra.Command{
		Use:   "update <attraction-id> <json>",
		Short: `Change columns of an attraction, e.g. '{"location":"Old town"}'`,
		Args:  cobra.ExactArgs(2),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			var updates map[string]any
			if err := json.Unmarshal([]byte(args[1]), &updates); err != nil {
				return exitError(exitUsage, "invalid update document: %v", err)
			}
			a, err := rt.attractions.Update(ctx, args[0], updates)
			if err != nil {
				return err
			}
			return render(cmd, a, attractionsText([]domain.Attraction{*a}))
		}),
	}

	remove := &cobra.Command{
		Use:   "delete <attraction-id>",
		Short: "Delete an attraction",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			if err := rt.attractions.Delete(ctx, args[0]); err != nil {
				return err
			}
			return render(cmd, map[string]string{"deleted": args[0]}, message("Deleted attraction %s", args[0]))
		}),
	}

	cmd.AddCommand(list, show, add, update, remove)
	return cmd
}

func attractionsText(attractions []domain.Attraction) func(io.Writer) error {
	return func(w io.Writer) error {
		rows := make([][]string, 0, len(attractions))
		for _, a := range attractions {
			rows = append(rows, []string{a.ID.String(), a.Name, a.Location})
		}
		return table(w, []string{"ID", "NAME", "LOCATION"}, rows)
	}
}

// NewFavoritesCmd creates the "favorites" command group.
func NewFavoritesCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage the signed-in user's favorite attractions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List favorites with their attraction",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			favorites, err := rt.attractions.Favorites(ctx)
			if err != nil {
				return err
			}
			return render(cmd, favorites, func(w io.Writer) error {
				rows := make([][]string, 0, len(favorites))
				for _, f := range favorites {
					name := ""
					var a domain.Attraction
					if len(f.Attraction) > 0 && json.Unmarshal(f.Attraction, &a) == nil {
						name = a.Name
					}
					rows = append(rows, []string{f.AttractionID, name})
				}
				return table(w, []string{"ATTRACTION", "NAME"}, rows)
			})
		}),
	}

	add := &cobra.Command{
		Use:   "add <attraction-id>",
		Short: "Mark an attraction as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			f, err := rt.attractions.AddFavorite(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, f, message("Added %s to favorites", f.AttractionID))
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <attraction-id>",
		Short: "Remove an attraction from favorites",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			if err := rt.attractions.RemoveFavorite(ctx, args[0]); err != nil {
				return err
			}
			return render(cmd, map[string]string{"removed": args[0]}, message("Removed %s from favorites", args[0]))
		}),
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
