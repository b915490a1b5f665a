package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	moovit "github.com/dortort/moovit-client"
)

var arrivalsCmd = &cobra.Command{
	Use:   "arrivals <line>:<stop> [<line>:<stop> ...]",
	Short: "Lists upcoming arrivals of lines at stops",
	Args:  cobra.MinimumNArgs(1),
	RunE:  arrivals,
}

var agenciesCmd = &cobra.Command{
	Use:   "agencies",
	Short: "Lists transit agencies of the metro",
	Args:  cobra.NoArgs,
	RunE:  agencies,
}

var (
	singleArrival bool
	agencyOrder   bool
)

func init() {
	arrivalsCmd.Flags().BoolVarP(&singleArrival, "single", "s", false, "Query a single line at a single stop")
	agenciesCmd.Flags().BoolVarP(&agencyOrder, "order", "o", false, "Show the agency display order")
	rootCmd.AddCommand(arrivalsCmd)
	rootCmd.AddCommand(agenciesCmd)
}

func arrivals(cmd *cobra.Command, args []string) error {
	pairs := []moovit.LineStopPair{}
	for _, arg := range args {
		pair, err := parsePair(arg)
		if err != nil {
			return err
		}
		pairs = append(pairs, pair)
	}

	if singleArrival && len(pairs) != 1 {
		return fmt.Errorf("--single takes exactly one <line>:<stop> pair")
	}

	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	var result []moovit.StopArrivals
	if singleArrival {
		sa, err := client.LineArrival(cmd.Context(), pairs[0].LineID, pairs[0].StopID)
		if err != nil {
			return err
		}
		if sa != nil {
			result = append(result, *sa)
		}
	} else {
		result, err = client.Arrivals(cmd.Context(), pairs)
		if err != nil {
			return err
		}
	}

	if len(result) == 0 {
		fmt.Println("No arrivals")
		return nil
	}

	now := time.Now()
	for _, sa := range result {
		fmt.Printf("Line %d at stop %d:\n", sa.LineID, sa.StopID)
		for _, a := range sa.Arrivals {
			fmt.Printf("  %s\n", describeArrival(a, now))
		}
	}

	return nil
}

func describeArrival(a moovit.Arrival, now time.Time) string {
	eta := a.ScheduledTime
	kind := "scheduled"
	if !a.RealTimeETA.IsZero() {
		eta = a.RealTimeETA
		kind = "real-time"
	}

	s := fmt.Sprintf("%s (%s, in %d min)", formatClock(eta), kind, int(eta.Sub(now).Minutes()))
	if a.VehicleLocation != nil && a.VehicleLocation.VehicleID != "" {
		s += fmt.Sprintf(" vehicle %s", a.VehicleLocation.VehicleID)
	}
	if a.IsLast {
		s += " [last]"
	}
	return s
}

func agencies(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	if agencyOrder {
		order, err := client.AgencyOrder(cmd.Context())
		if err != nil {
			return err
		}
		for _, item := range order {
			fmt.Printf("%d\t%d\n", item.Order, item.AgencyID)
		}
		return nil
	}

	list, err := client.Agencies(cmd.Context())
	if err != nil {
		return err
	}
	for _, agency := range list {
		url := ""
		if agency.URL != nil {
			url = *agency.URL
		}
		fmt.Printf("%d\t%s\t%s\n", agency.ID, agency.Name, url)
	}

	return nil
}
