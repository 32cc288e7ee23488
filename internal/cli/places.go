package cli

import (
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/places/domain"
	restRepo "github.com/fastygo/places/repository/rest"
	placeUC "github.com/fastygo/places/usecase/place"
)

// NewPlacesCmd creates the "places" command group.
func NewPlacesCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "places",
		Short: "Browse and publish places",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List places",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			client, err := rt.backend(ctx)
			if err != nil {
				return err
			}
			category, _ := cmd.Flags().GetString("category")
			sortBy, _ := cmd.Flags().GetString("sort")
			desc, _ := cmd.Flags().GetBool("desc")

			var places []domain.Place
			if category == "" && sortBy == "" {
				if places, err = rt.places.List(ctx); err != nil {
					return err
				}
			} else {
				q := client.From(restRepo.TablePlaces).Select("*")
				if category != "" {
					q = q.Eq("category", category)
				}
				rows, err := q.Get(ctx)
				if err != nil {
					return err
				}
				if sortBy != "" {
					rows = rows.Order(sortBy, !desc)
				}
				places = []domain.Place{}
				if err := rows.Decode(&places); err != nil {
					return err
				}
			}
			return render(cmd, places, placesText(places))
		}),
	}
	list.Flags().String("category", "", "Only places of this category")
	list.Flags().String("sort", "", "Sort by column, e.g. rating or name")
	list.Flags().Bool("desc", false, "Sort descending")

	show := &cobra.Command{
		Use:   "show <place-id>",
		Short: "Show one place",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			place, err := rt.places.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, place, placesText([]domain.Place{*place}))
		}),
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Publish a place as the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			var in placeUC.AddInput
			in.Name, _ = cmd.Flags().GetString("name")
			in.Description, _ = cmd.Flags().GetString("description")
			in.Address, _ = cmd.Flags().GetString("address")
			in.Category, _ = cmd.Flags().GetString("category")
			in.ImagePath, _ = cmd.Flags().GetString("image")

			place, err := rt.places.Add(ctx, in)
			if err != nil {
				return err
			}
			return render(cmd, place, message("Added place %s (%s)", place.Name, place.ID))
		}),
	}
	add.Flags().String("name", "", "Place name")
	add.Flags().String("description", "", "Description")
	add.Flags().String("address", "", "Address")
	add.Flags().String("category", "", "Category")
	add.Flags().String("image", "", "Path to a photo")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Find places by name, description, address or category",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			places, err := rt.places.Search(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, places, placesText(places))
		}),
	}

	cmd.AddCommand(list, show, add, search)
	return cmd
}

func placesText(places []domain.Place) func(io.Writer) error {
	return func(w io.Writer) error {
		rows := make([][]string, 0, len(places))
		for _, p := range places {
			rows = append(rows, []string{
				p.ID.String(),
				p.Name,
				p.Category,
				p.Address,
				strconv.FormatFloat(p.Rating, 'f', 1, 64),
				strconv.Itoa(p.RatingsCount),
			})
		}
		return table(w, []string{"ID", "NAME", "CATEGORY", "ADDRESS", "RATING", "REVIEWS"}, rows)
	}
}

// NewReviewsCmd creates the "reviews" command group.
func NewReviewsCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Read and write place reviews",
	}

	list := &cobra.Command{
		Use:   "list <place-id>",
		Short: "List a place's reviews, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			reviews, err := rt.reviews.ListWithUserData(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd, reviews, reviewsText(reviews))
		}),
	}

	add := &cobra.Command{
		Use:   "add <place-id>",
		Short: "Rate a place and update its average",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			if _, err := rt.backend(ctx); err != nil {
				return err
			}
			rating, _ := cmd.Flags().GetInt("rating")
			text, _ := cmd.Flags().GetString("text")
			review, err := rt.reviews.AddAndUpdateRating(ctx, args[0], rating, text)
			if err != nil {
				return err
			}
			return render(cmd, review, message("Rated %d/5 as %s", review.Rating, review.User.UserMetadata.Username))
		}),
	}
	add.Flags().Int("rating", 0, "Rating from 1 to 5")
	add.Flags().String("text", "", "Review text")
	_ = add.MarkFlagRequired("rating")

	cmd.AddCommand(list, add)
	return cmd
}

func reviewsText(reviews []domain.Review) func(io.Writer) error {
	return func(w io.Writer) error {
		rows := make([][]string, 0, len(reviews))
		for _, r := range reviews {
			author := domain.DefaultReviewerName
			if r.User != nil {
				author = r.User.UserMetadata.Username
			}
			when := ""
			if t := r.CreatedTime(); !t.IsZero() {
				when = t.Format(time.DateOnly)
			}
			rows = append(rows, []string{when, author, strconv.Itoa(r.Rating), r.Review})
		}
		return table(w, []string{"DATE", "AUTHOR", "RATING", "REVIEW"}, rows)
	}
}
