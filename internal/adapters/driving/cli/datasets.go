package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List registered datasets",
	Args:  cobra.NoArgs,
	RunE:  runDatasets,
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}

func runDatasets(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context(), ""); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	datasets := ingestService.Datasets()
	if len(datasets) == 0 {
		cmd.Println("No datasets registered.")
		return nil
	}

	for _, ds := range datasets {
		cmd.Printf("%s\n", ds.Name)
		cmd.Printf("  URL:     %s\n", ds.SourceURL)
		cmd.Printf("  Archive: %s\n", ds.ArchiveName)
		cmd.Printf("  CSV:     %s\n", ds.CSVName)
	}
	return nil
}
