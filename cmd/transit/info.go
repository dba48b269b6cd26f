package main

import (
	"fmt"

	"github.com/spf13/cobra"

	transit "github.com/transitgrid/transit"
)

var infoCmd = &cobra.Command{
	Use:   "info <feed>",
	Short: "Prints table counts for a GTFS feed without a full parse",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	lazy, err := transit.LazyFromZip(args[0], transit.LoadOptions{})
	if err != nil {
		lazy, err = transit.LazyFromDirectory(args[0], transit.LoadOptions{})
		if err != nil {
			return err
		}
	}

	for _, t := range []transit.Table{
		transit.TableAgency, transit.TableStops, transit.TableRoutes,
		transit.TableTrips, transit.TableStopTimes, transit.TableCalendar,
		transit.TableCalendarDates, transit.TableShapes,
	} {
		n, err := lazy.Count(t)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s %d\n", t, n)
	}
	return nil
}
