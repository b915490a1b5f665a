package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	moovit "github.com/dortort/moovit-client"
	"github.com/dortort/moovit-client/storage"
)

const envPrefix = "MOOVIT_"

// loadConfig builds the client config. Later sources override earlier
// ones: config file, environment (including the env file), flags.
func loadConfig(cmd *cobra.Command) (moovit.Config, error) {
	cfg := moovit.Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", configPath, err)
		}
	}

	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("metro") {
		cfg.MetroID = metroID
	}
	if flags.Changed("language") {
		cfg.Language = lang
	}
	if flags.Changed("user-key") {
		cfg.UserKey = userKey
	}
	if flags.Changed("channel") {
		cfg.Channel = moovit.Channel(channel)
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}

	return cfg, nil
}

func applyEnv(cfg *moovit.Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, found := lookup(envPrefix + name)
		return strings.TrimSpace(v), found && strings.TrimSpace(v) != ""
	}

	if v, found := get("METRO_ID"); found {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMETRO_ID: %w", envPrefix, err)
		}
		cfg.MetroID = id
	}
	if v, found := get("LANGUAGE"); found {
		cfg.Language = v
	}
	if v, found := get("USER_KEY"); found {
		cfg.UserKey = v
	}
	if v, found := get("CUSTOMER_ID"); found {
		cfg.CustomerID = v
	}
	if v, found := get("BASE_URL"); found {
		cfg.BaseURL = v
	}
	if v, found := get("CHANNEL"); found {
		cfg.Channel = moovit.Channel(v)
	}
	if v, found := get("DEBUG"); found {
		d, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEBUG: %w", envPrefix, err)
		}
		cfg.Debug = d
	}
	if v, found := get("POSTGRES"); found && postgresURL == "" {
		postgresURL = v
	}

	return nil
}

// openImageStore returns the configured persistent image store, or
// nil to use the client's in-memory cache.
func openImageStore() (storage.ImageStore, error) {
	if postgresURL != "" {
		s, err := storage.NewPSQLImageStore(postgresURL, false)
		if err != nil {
			return nil, fmt.Errorf("opening postgres image cache: %w", err)
		}
		return s, nil
	}

	if imageDir != "" {
		s, err := storage.NewSQLiteImageStore(storage.SQLiteConfig{OnDisk: true, Directory: imageDir})
		if err != nil {
			return nil, fmt.Errorf("opening image cache: %w", err)
		}
		return s, nil
	}

	return nil, nil
}
