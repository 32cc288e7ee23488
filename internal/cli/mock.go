package cli

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/fastygo/places/internal/fakebackend"
	restRepo "github.com/fastygo/places/repository/rest"
)

const (
	demoEmail    = "demo@places.local"
	demoPassword = "demo-password"
)

// NewMockCmd creates the "mock" subcommand.
func NewMockCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve an in-memory backend for local development",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, _ []string, rt *runtime) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = rt.cfg.Mock.Addr
			}
			fb := fakebackend.New(fakebackend.Config{
				AnonKey: rt.cfg.Mock.AnonKey,
				Logger:  rt.logger.Named("mock"),
			})
			if seed, _ := cmd.Flags().GetBool("seed"); seed {
				if err := seedDemo(fb); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
				fmt.Fprintln(out, figure.NewFigure("places", "cybermedium", true).String())
			}
			fmt.Fprintf(out, "Mock backend listening on http://%s (anon key %q)\n", addr, fb.AnonKey())

			ctx, stop := rt.signalContext(cmd.Context())
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- fb.ListenAndServe(addr)
			}()
			rt.manager.RegisterCloser("mock_backend", fb)

			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "Shutting down...")
				return nil
			case err := <-errCh:
				if err != nil {
					return exitError(exitRuntime, "server error: %v", err)
				}
				return nil
			}
		}),
	}
	cmd.Flags().String("addr", "", "Listen address (defaults to MOCK_ADDR)")
	cmd.Flags().Bool("seed", false, "Create a demo account and sample rows")
	cmd.Flags().Bool("quiet", false, "Skip the banner")
	return cmd
}

// seedDemo fills fb with a demo account and a few rows to browse.
func seedDemo(fb *fakebackend.Server) error {
	user, err := fb.CreateUser(demoEmail, demoPassword, map[string]any{"username": "demo"})
	if err != nil {
		return fmt.Errorf("seed demo account: %w", err)
	}
	fb.Seed(restRepo.TableProfiles, fakebackend.Row{"id": user.ID, "username": "demo", "avatar_url": nil})
	fb.Seed(restRepo.TablePlaces,
		fakebackend.Row{
			"name": "Old Town Square", "description": "Historic market square",
			"address": "Staromestske nam., Prague", "category": "landmark",
			"rating": 4.5, "ratings_count": 2, "created_by": user.ID,
		},
		fakebackend.Row{
			"name": "Riverside Cafe", "description": "Coffee with a view",
			"address": "Embankment 12", "category": "cafe",
			"rating": 4.0, "ratings_count": 1, "created_by": user.ID,
		},
	)
	places := fb.Rows(restRepo.TablePlaces)
	for i, rating := range []int{5, 4} {
		fb.Seed(restRepo.TableReviews, fakebackend.Row{
			"place_id": places[0]["id"], "user_id": user.ID, "rating": rating, "review": fmt.Sprintf("visit %d", i+1),
		})
	}
	fb.Seed(restRepo.TableReviews, fakebackend.Row{
		"place_id": places[1]["id"], "user_id": user.ID, "rating": 4, "review": "nice",
	})
	fb.Seed(restRepo.TableAttraction,
		fakebackend.Row{"name": "Castle", "description": "Hilltop castle", "location": "Hradcany"},
		fakebackend.Row{"name": "Botanical Garden", "location": "Troja"},
	)
	return nil
}
