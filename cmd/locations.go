package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	moovit "github.com/dortort/moovit-client"
	"github.com/dortort/moovit-client/known"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Searches for stops, addresses and places",
	Args:  cobra.MinimumNArgs(1),
	RunE:  search,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <location>",
	Short: "Resolves a location to coordinates and id",
	Args:  cobra.ExactArgs(1),
	RunE:  resolve,
}

var locationsCmd = &cobra.Command{
	Use:   "locations [query]",
	Short: "Lists known locations",
	Args:  cobra.MaximumNArgs(1),
	RunE:  locations,
}

var (
	searchNear string
	category   string
)

func init() {
	searchCmd.Flags().StringVarP(&searchNear, "near", "n", "", "Bias results towards lat,lon")
	locationsCmd.Flags().StringVar(&category, "category", "", "Only locations in category (bus-station, train-station, landmark, airport)")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(locationsCmd)
}

func search(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	var near *moovit.Coordinates
	if searchNear != "" {
		c, ok := parseCoordinates(searchNear)
		if !ok {
			return fmt.Errorf("'%s' is not on form lat,lon", searchNear)
		}
		near = &c
	}

	results, err := client.SearchLocations(cmd.Context(), query, near)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results")
		return nil
	}
	for _, r := range results {
		subtitle := ""
		if r.Subtitle != nil {
			subtitle = *r.Subtitle
		}
		fmt.Printf("%s\t%d\t%s\t%s\t%s\n", r.Type, r.ID, r.Name, subtitle, formatCoordinates(r.Coordinates))
	}

	return nil
}

func resolve(cmd *cobra.Command, args []string) error {
	input, err := parseLocation(args[0], known.Default())
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	loc, err := client.Resolve(cmd.Context(), input)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%d\t%d\t%s\n", loc.Caption, loc.ID, loc.Type, formatCoordinates(loc.Coordinates))
	return nil
}

// locations needs no session, the registry is local.
func locations(cmd *cobra.Command, args []string) error {
	registry := known.Default()

	var list []known.Location
	switch {
	case len(args) == 1:
		list = registry.Search(args[0])
	case category != "":
		list = registry.ByCategory(known.Category(category))
	default:
		list = registry.List()
	}

	for _, loc := range list {
		if category != "" && loc.Category != known.Category(category) {
			continue
		}
		fmt.Printf("%-24s %-40s %s\t%s\n", loc.ID, loc.Name, formatCoordinates(loc.Coordinates), strings.Join(loc.Aliases, ","))
	}

	return nil
}

func formatCoordinates(c moovit.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}
