package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	moovit "github.com/dortort/moovit-client"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Lists service alerts",
	Args:  cobra.NoArgs,
	RunE:  alerts,
}

var alertCmd = &cobra.Command{
	Use:   "alert <id>",
	Short: "Shows details of a service alert",
	Args:  cobra.ExactArgs(1),
	RunE:  alert,
}

var (
	metroAlerts  bool
	alertsFormat string
	alertsOutput string
	alertLang    string
)

func init() {
	alertsCmd.Flags().BoolVar(&metroAlerts, "metro", false, "Only alerts for the configured metro")
	alertsCmd.Flags().StringVarP(&alertsFormat, "format", "f", "text", "Output format: text, json or pb (GTFS-Realtime)")
	alertsCmd.Flags().StringVarP(&alertsOutput, "output", "o", "", "Write output to file instead of stdout")
	alertCmd.Flags().StringVar(&alertLang, "lang", "", "Language of the alert text (default from config)")
	alertCmd.Flags().StringVarP(&alertsFormat, "format", "f", "text", "Output format: text, json or pb (GTFS-Realtime)")
	alertCmd.Flags().StringVarP(&alertsOutput, "output", "o", "", "Write output to file instead of stdout")
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(alertCmd)
}

func alerts(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	var list []moovit.Alert
	if metroAlerts {
		list, err = client.MetroAlerts(cmd.Context())
	} else {
		list, err = client.Alerts(cmd.Context())
	}
	if err != nil {
		return err
	}

	switch alertsFormat {
	case "json":
		return writeJSONOutput(list)
	case "pb":
		buf, err := moovit.MarshalFeed(moovit.AlertsFeed(list, time.Now()))
		if err != nil {
			return err
		}
		return writeOutput(buf)
	case "text":
	default:
		return fmt.Errorf("unknown format %q", alertsFormat)
	}

	if len(list) == 0 {
		fmt.Println("No alerts")
		return nil
	}
	for _, a := range list {
		fmt.Printf("%d\t%s\t%s\n", a.ID, a.Severity, a.Title)
	}

	return nil
}

func alert(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid alert id: %w", err)
	}

	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	details, err := client.AlertDetails(cmd.Context(), id, alertLang)
	if err != nil {
		return err
	}
	if details == nil {
		return fmt.Errorf("alert %d not found", id)
	}

	switch alertsFormat {
	case "json":
		return writeJSONOutput(details)
	case "pb":
		buf, err := moovit.MarshalFeed(moovit.AlertDetailsFeed([]moovit.AlertDetails{*details}, time.Now()))
		if err != nil {
			return err
		}
		return writeOutput(buf)
	case "text":
	default:
		return fmt.Errorf("unknown format %q", alertsFormat)
	}

	fmt.Printf("%s (%s)\n", details.Title, details.Severity)
	if details.FullDescription != nil {
		fmt.Println(*details.FullDescription)
	} else if details.Description != nil {
		fmt.Println(*details.Description)
	}
	for _, period := range details.ActivePeriods {
		fmt.Printf("Active %s - %s\n", period.Start.Local().Format(time.DateTime), period.End.Local().Format(time.DateTime))
	}
	for _, e := range details.AffectedEntities {
		fmt.Printf("Affects %s %d\n", e.Type, e.ID)
	}

	return nil
}

func writeJSONOutput(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}
	return writeOutput(append(buf, '\n'))
}

func writeOutput(buf []byte) error {
	if alertsOutput == "" {
		_, err := os.Stdout.Write(buf)
		return err
	}
	err := os.WriteFile(alertsOutput, buf, 0644)
	if err != nil {
		return fmt.Errorf("writing %s: %w", alertsOutput, err)
	}
	return nil
}
