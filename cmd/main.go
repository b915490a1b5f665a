package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	moovit "github.com/dortort/moovit-client"
	"github.com/dortort/moovit-client/storage"
)

var rootCmd = &cobra.Command{
	Use:          "moovit",
	Short:        "Moovit transit client",
	Long:         "Plans trips, lists arrivals, alerts and more using the Moovit web API",
	SilenceUsage: true,
}

var (
	configPath  string
	envFile     string
	metroID     int
	lang        string
	userKey     string
	channel     string
	debug       bool
	imageDir    string
	postgresURL string

	// Closed on exit.
	imageStore storage.ImageStore
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "", ".env", "File with MOOVIT_* environment variables")
	rootCmd.PersistentFlags().IntVarP(&metroID, "metro", "m", 0, "Moovit metro id")
	rootCmd.PersistentFlags().StringVarP(&lang, "language", "L", "", "Language of names and alerts")
	rootCmd.PersistentFlags().StringVarP(&userKey, "user-key", "", "", "User key sent to Moovit (random if unset)")
	rootCmd.PersistentFlags().StringVarP(&channel, "channel", "", "", "How requests are made: page or http")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "", false, "Log requests to stderr")
	rootCmd.PersistentFlags().StringVarP(&imageDir, "image-cache", "", "", "Directory for an on-disk image cache")
	rootCmd.PersistentFlags().StringVarP(&postgresURL, "postgres", "", "", "Postgres connection string for the image cache")
}

func main() {
	err := rootCmd.Execute()
	if imageStore != nil {
		imageStore.Close()
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Creates and initializes a client from config file, environment and
// flags. The caller must close it.
func newClient(ctx context.Context, cmd *cobra.Command) (*moovit.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	imageStore, err = openImageStore()
	if err != nil {
		return nil, err
	}
	cfg.ImageStore = imageStore

	client, err := moovit.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
