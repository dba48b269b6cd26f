package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/convert"
	"github.com/transitgrid/transit/txc"
)

var convertCmd = &cobra.Command{
	Use:   "convert <txc.xml> [more.xml...] <out.zip>",
	Short: "Converts TransXChange documents to a GTFS feed",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runConvert,
}

var (
	convertShapes   bool
	convertRegion   string
	convertTimezone string
)

func init() {
	convertCmd.Flags().BoolVarP(&convertShapes, "shapes", "", false, "emit shapes from route geometry")
	convertCmd.Flags().StringVarP(&convertRegion, "region", "", "england", "bank holiday region")
	convertCmd.Flags().StringVarP(&convertTimezone, "timezone", "", "", "agency timezone override")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	region, err := convert.ParseRegion(convertRegion)
	if err != nil {
		return err
	}

	docs := []*txc.Document{}
	for _, path := range args[:len(args)-1] {
		doc, err := txc.Load(path)
		if err != nil {
			return err
		}
		for _, d := range doc.Diagnostics {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, d)
		}
		docs = append(docs, doc)
	}

	result, err := convert.ConvertBatch(context.Background(), docs, convert.Options{
		IncludeShapes:   convertShapes,
		Region:          region,
		DefaultTimezone: convertTimezone,
	})
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), w)
	}

	out := args[len(args)-1]
	if err := transit.WriteToZip(result.Feed, out); err != nil {
		return err
	}

	fmt.Printf("%s: %d agencies, %d routes, %d stops, %d trips, %d stop times, %d calendars, %d exceptions, %d shapes\n",
		out,
		result.Stats.Agencies, result.Stats.Routes, result.Stats.Stops,
		result.Stats.Trips, result.Stats.StopTimes, result.Stats.Calendars,
		result.Stats.CalendarExceptions, result.Stats.ShapesGenerated)

	return nil
}
