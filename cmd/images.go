package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var imagesCmd = &cobra.Command{
	Use:   "images <id> [<id> ...]",
	Short: "Downloads transit images such as agency logos",
	Args:  cobra.MinimumNArgs(1),
	RunE:  images,
}

var imagesOut string

var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/svg+xml": ".svg",
}

func init() {
	imagesCmd.Flags().StringVar(&imagesOut, "out", ".", "Directory to write images to")
	rootCmd.AddCommand(imagesCmd)
}

func images(cmd *cobra.Command, args []string) error {
	ids := []int64{}
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid image id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Images(cmd.Context(), ids)
	if err != nil {
		return err
	}

	err = os.MkdirAll(imagesOut, 0755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", imagesOut, err)
	}

	for _, image := range result {
		data, err := base64.StdEncoding.DecodeString(image.Data)
		if err != nil {
			return fmt.Errorf("decoding image %d: %w", image.ID, err)
		}

		ext, found := imageExtensions[image.MimeType]
		if !found {
			ext = ".bin"
		}
		path := filepath.Join(imagesOut, strconv.FormatInt(image.ID, 10)+ext)

		err = os.WriteFile(path, data, 0644)
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("%d\t%s\t%d bytes\n", image.ID, path, len(data))
	}

	if len(result) < len(ids) {
		fmt.Printf("%d of %d images not found\n", len(ids)-len(result), len(ids))
	}

	return nil
}
