package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driving"
)

// mockIngestor implements driving.Ingestor for testing.
type mockIngestor struct {
	report   *domain.IngestReport
	err      error
	datasets []domain.Dataset

	gotDataset string
	gotOpts    domain.IngestOptions
	calls      int
}

func (m *mockIngestor) Ingest(_ context.Context, dataset string, opts domain.IngestOptions) (*domain.IngestReport, error) {
	m.calls++
	m.gotDataset = dataset
	m.gotOpts = opts
	return m.report, m.err
}

func (m *mockIngestor) Datasets() []domain.Dataset {
	return m.datasets
}

// mockPatientService implements driving.PatientService for testing.
type mockPatientService struct {
	patients []domain.Patient
	countErr error
	eachErr  error
}

func (m *mockPatientService) Count(_ context.Context) (int, error) {
	return len(m.patients), m.countErr
}

func (m *mockPatientService) List(_ context.Context, offset, limit int) ([]domain.Patient, error) {
	if offset >= len(m.patients) {
		return nil, nil
	}
	end := min(offset+limit, len(m.patients))
	return m.patients[offset:end], nil
}

func (m *mockPatientService) GetBySSN(_ context.Context, ssn string) (*domain.Patient, error) {
	for i := range m.patients {
		if m.patients[i].SSN == ssn {
			return &m.patients[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPatientService) Each(_ context.Context, fn func(domain.Patient) error) error {
	if m.eachErr != nil {
		return m.eachErr
	}
	for _, p := range m.patients {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// mockMetricsWriter implements MetricsWriter for testing.
type mockMetricsWriter struct {
	paths []string
	err   error
}

func (m *mockMetricsWriter) WriteTextfile(path string) error {
	m.paths = append(m.paths, path)
	return m.err
}

var errBoom = errors.New("boom")

// setupServices installs the given services and resets command flags.
// The returned cleanup restores the previous state.
func setupServices(t *testing.T, ingestor driving.Ingestor, patients driving.PatientService) func() {
	t.Helper()

	oldBootstrap := bootstrap
	oldIngest, oldPatients := ingestService, patientService
	oldMetrics, oldMetricsFile, oldClose := metricsWriter, metricsFile, closeServices

	bootstrap = nil
	ingestService = ingestor
	patientService = patients
	metricsWriter = nil
	metricsFile = ""
	closeServices = nil
	resetFlags()

	return func() {
		bootstrap = oldBootstrap
		ingestService, patientService = oldIngest, oldPatients
		metricsWriter, metricsFile, closeServices = oldMetrics, oldMetricsFile, oldClose
		resetFlags()
	}
}

func resetFlags() {
	globalFlags = GlobalFlags{}
	ingestDataset = domain.DefaultDatasetName
	ingestWorkers = 0
	ingestSkipDownload = false
	exportOut = ""
	exportLimit = 0
}
