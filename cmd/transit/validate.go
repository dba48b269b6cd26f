package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	transit "github.com/transitgrid/transit"
	"github.com/transitgrid/transit/schedule"
)

var validateCmd = &cobra.Command{
	Use:   "validate <schedule.csv>",
	Short: "Validates a run-cut, optionally against a GTFS feed",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var (
	validateGTFS       string
	validateCompliance string
	validateTolerance  int
	validateMinLayover int
)

func init() {
	validateCmd.Flags().StringVarP(&validateGTFS, "gtfs", "", "", "GTFS feed (zip or directory) to cross-reference")
	validateCmd.Flags().StringVarP(&validateCompliance, "compliance", "", "standard", "compliance level: strict, standard or lenient")
	validateCmd.Flags().IntVarP(&validateTolerance, "tolerance", "", 60, "time tolerance in seconds")
	validateCmd.Flags().IntVarP(&validateMinLayover, "min-layover", "", 0, "minimum layover in seconds")
	rootCmd.AddCommand(validateCmd)
}

func loadFeedArg(path string) (*transit.Feed, error) {
	fi, err := os.Stat(path)
	if err == nil && fi.IsDir() {
		return transit.LoadFromDirectory(context.Background(), path, transit.LoadOptions{})
	}
	return transit.LoadFromZip(context.Background(), path, transit.LoadOptions{})
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	sched, err := schedule.ReadCSV(f, schedule.MappingOptions{})
	if err != nil {
		return err
	}
	for _, w := range sched.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), w)
	}

	var feed *transit.Feed
	if validateGTFS != "" {
		feed, err = loadFeedArg(validateGTFS)
		if err != nil {
			return err
		}
	}

	level, err := schedule.ParseLevel(validateCompliance)
	if err != nil {
		return err
	}

	report := schedule.Validate(sched, feed, schedule.Config{
		Compliance:           level,
		TimeToleranceSeconds: validateTolerance,
		MinLayoverSeconds:    validateMinLayover,
	})

	for _, issue := range report.Issues {
		fmt.Printf("%s [%s] %s\n", issue.Code, issue.Severity, issue.Message)
	}
	fmt.Printf("%d errors, %d warnings\n", report.Errors, report.Warnings)

	if !report.IsValid {
		return fmt.Errorf("schedule is not valid")
	}
	return nil
}
