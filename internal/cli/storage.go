package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastygo/places/pkg/backend/storage"
)

type uploadView struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// NewUploadCmd creates the "upload" subcommand.
func NewUploadCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			client, err := rt.backend(ctx)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				base := filepath.Base(args[0])
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}
			bucket, _ := cmd.Flags().GetString("bucket")
			if bucket == "" {
				bucket = storage.ResolveBucket(name)
			}

			url, err := client.Storage.UploadImage(ctx, bucket, args[0], name)
			if err != nil {
				return err
			}
			view := uploadView{Bucket: bucket, Name: name + "." + storage.ImageExt(args[0]), URL: url}
			return render(cmd, view, message("%s", url))
		}),
	}
	cmd.Flags().String("bucket", "", "Target bucket (picked from the object name when empty)")
	cmd.Flags().String("name", "", "Object name without extension (defaults to the file name)")
	return cmd
}

// NewStorageCmd creates the "storage" command group.
func NewStorageCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Work with storage objects",
	}

	url := &cobra.Command{
		Use:   "url <bucket> <path>",
		Short: "Print the public URL of an object",
		Args:  cobra.ExactArgs(2),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			client, err := rt.backend(cmd.Context())
			if err != nil {
				return err
			}
			u := client.Storage.PublicURL(args[0], args[1])
			return render(cmd, uploadView{Bucket: args[0], Name: args[1], URL: u}, message("%s", u))
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <bucket> <path>...",
		Short: "Delete objects from a bucket",
		Args:  cobra.MinimumNArgs(2),
		RunE: withRuntime(opts, func(cmd *cobra.Command, args []string, rt *runtime) error {
			ctx := cmd.Context()
			client, err := rt.backend(ctx)
			if err != nil {
				return err
			}
			bucket, paths := args[0], args[1:]
			if len(paths) == 1 {
				err = client.Storage.Delete(ctx, bucket, paths[0])
			} else {
				err = client.Storage.Remove(ctx, bucket, paths)
			}
			if err != nil {
				return err
			}
			return render(cmd, map[string]any{"bucket": bucket, "removed": paths},
				message("Removed %d object(s) from %s", len(paths), bucket))
		}),
	}

	cmd.AddCommand(NewUploadCmd(opts), url, remove)
	return cmd
}
