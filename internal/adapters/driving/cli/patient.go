package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

var (
	exportOut   string
	exportLimit int
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored patients",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

var showCmd = &cobra.Command{
	Use:   "show [ssn]",
	Short: "Show a stored patient as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored patients as CSV",
	Long: `Writes stored patients as CSV, ordered by SSN, to standard output or
to the file given with --out.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "maximum number of patients (0 for all)")
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
}

// errLimitReached stops export iteration once the limit is hit.
var errLimitReached = errors.New("limit reached")

// patientRow is the exported CSV shape of a patient.
type patientRow struct {
	ID                 string           `csv:"id" json:"id"`
	BirthDate          string           `csv:"birthdate" json:"birthdate"`
	DeathDate          string           `csv:"deathdate" json:"deathdate,omitempty"`
	SSN                string           `csv:"ssn" json:"ssn"`
	Drivers            *string          `csv:"drivers" json:"drivers,omitempty"`
	Passport           *string          `csv:"passport" json:"passport,omitempty"`
	Prefix             *string          `csv:"prefix" json:"prefix,omitempty"`
	First              string           `csv:"first" json:"first"`
	Last               string           `csv:"last" json:"last"`
	Suffix             *string          `csv:"suffix" json:"suffix,omitempty"`
	Maiden             *string          `csv:"maiden" json:"maiden,omitempty"`
	Marital            string           `csv:"marital" json:"marital,omitempty"`
	Race               domain.Race      `csv:"race" json:"race"`
	Ethnicity          domain.Ethnicity `csv:"ethnicity" json:"ethnicity"`
	Gender             domain.Gender    `csv:"gender" json:"gender"`
	Birthplace         string           `csv:"birthplace" json:"birthplace"`
	Address            string           `csv:"address" json:"address"`
	City               string           `csv:"city" json:"city"`
	State              string           `csv:"state" json:"state"`
	County             string           `csv:"county" json:"county"`
	Zip                *string          `csv:"zip" json:"zip,omitempty"`
	Lat                decimal.Decimal  `csv:"lat" json:"lat"`
	Lon                decimal.Decimal  `csv:"lon" json:"lon"`
	HealthcareExpenses decimal.Decimal  `csv:"healthcare_expenses" json:"healthcare_expenses"`
	HealthcareCoverage decimal.Decimal  `csv:"healthcare_coverage" json:"healthcare_coverage"`
}

func newPatientRow(p *domain.Patient) patientRow {
	row := patientRow{
		ID:                 p.ID.String(),
		BirthDate:          p.BirthDate.Format(domain.DateLayout),
		SSN:                p.SSN,
		Drivers:            p.DriversLicense,
		Passport:           p.Passport,
		Prefix:             p.Prefix,
		First:              p.First,
		Last:               p.Last,
		Suffix:             p.Suffix,
		Maiden:             p.Maiden,
		Race:               p.Race,
		Ethnicity:          p.Ethnicity,
		Gender:             p.Gender,
		Birthplace:         p.Birthplace,
		Address:            p.Address,
		City:               p.City,
		State:              p.State,
		County:             p.County,
		Zip:                p.Zip,
		Lat:                p.Lat,
		Lon:                p.Lon,
		HealthcareExpenses: p.HealthcareExpenses,
		HealthcareCoverage: p.HealthcareCoverage,
	}
	if p.DeathDate != nil {
		row.DeathDate = p.DeathDate.Format(domain.DateLayout)
	}
	if p.Marital != nil {
		row.Marital = string(*p.Marital)
	}
	return row
}

func runCount(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx, ""); err != nil {
		return err
	}
	if patientService == nil {
		return errors.New("patient service not configured")
	}

	count, err := patientService.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count patients: %w", err)
	}

	cmd.Println(count)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := ensureServices(ctx, ""); err != nil {
		return err
	}
	if patientService == nil {
		return errors.New("patient service not configured")
	}

	p, err := patientService.GetBySSN(ctx, args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no patient with SSN %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get patient: %w", err)
	}

	data, err := json.MarshalIndent(newPatientRow(p), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal patient: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) (err error) {
	if exportLimit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", exportLimit)
	}

	ctx := cmd.Context()
	if err := ensureServices(ctx, ""); err != nil {
		return err
	}
	if patientService == nil {
		return errors.New("patient service not configured")
	}

	out := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}

	n, err := exportPatients(ctx, out, exportLimit)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if exportOut != "" {
		cmd.Printf("Exported %d patients to %s\n", n, exportOut)
	}
	return nil
}

// exportPatients streams up to limit patients to w and returns how many
// were written. A limit of zero exports everything.
func exportPatients(ctx context.Context, w io.Writer, limit int) (int, error) {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(patientRow{}); err != nil {
		return 0, err
	}

	written := 0
	err := patientService.Each(ctx, func(p domain.Patient) error {
		if limit > 0 && written >= limit {
			return errLimitReached
		}
		if err := enc.Encode(newPatientRow(&p)); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return written, err
	}

	cw.Flush()
	return written, cw.Error()
}
