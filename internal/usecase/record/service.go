package record

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	domainRecord "prodtest-collector/internal/domain/record"
	"prodtest-collector/internal/logger"
	appErrors "prodtest-collector/pkg/errors"
	"prodtest-collector/pkg/utils"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// createdAtLayout is the wire format of server-assigned timestamps.
	createdAtLayout = "2006-01-02T15:04:05Z"
	dateLayout      = "2006-01-02"

	DefaultPageSize = 50
	MaxPageSize     = 200
)

var exportHeader = []string{
	"id", "created_at", "start_time", "end_time", "duration_seconds",
	"device_serial_number", "device_name",
	"device_firmware_version", "device_bootloader_version", "device_hardware_revision",
	"overall_passed", "need_retest", "steps_summary", "step_results", "test_details",
}

// Service implements record ingestion and the read-side query operations.
type Service struct {
	repo domainRecord.Repository
	now  func() time.Time
}

func NewService(repo domainRecord.Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// WithNow replaces the service clock. Tests use it to control createdAt.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ingest validates one uploaded result, assigns identity and timestamp, and
// appends it to the store. Resubmission creates a new record; idempotency is
// not guaranteed.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError("VALIDATION_ERROR", "Invalid input", err)
	}

	serial := strings.TrimSpace(req.DeviceSerialNumber)
	if serial == "" {
		return nil, domainRecord.ErrSerialRequired
	}

	rec := &domainRecord.TestRecord{
		ID:                      uuid.New().String(),
		CreatedAt:               s.now().UTC().Truncate(time.Second),
		StartTime:               req.StartTime,
		EndTime:                 req.EndTime,
		DurationSeconds:         req.DurationSeconds,
		DeviceSerialNumber:      serial,
		DeviceName:              req.DeviceName,
		DeviceFirmwareVersion:   req.DeviceFirmwareVersion,
		DeviceBootloaderVersion: req.DeviceBootloaderVersion,
		DeviceHardwareRevision:  req.DeviceHardwareRevision,
		OverallPassed:           *req.OverallPassed,
		NeedRetest:              req.NeedRetest,
		StepsSummary:            toDomainSteps(req.StepsSummary),
		StepResults:             req.StepResults,
		TestDetails:             req.TestDetails,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	logger.Info("Test record stored",
		zap.String("record_id", rec.ID),
		zap.String("serial_number", serial),
		zap.Bool("overall_passed", rec.OverallPassed),
		zap.String("event", "record_ingested"),
	)

	return &IngestResponse{
		OK:        true,
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt.Format(createdAtLayout),
	}, nil
}

func (s *Service) ListRecords(ctx context.Context, q *RecordQuery) (*RecordListResponse, error) {
	if err := utils.ValidateStruct(q); err != nil {
		return nil, appErrors.NewAppError("VALIDATION_ERROR", "Invalid query parameters", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	filter := domainRecord.Filter{
		SerialNumber: q.SN,
		DateFrom:     q.DateFrom,
		DateTo:       q.DateTo,
	}

	records, total, err := s.repo.List(ctx, filter, domainRecord.Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	items := make([]RecordItem, len(records))
	for i, r := range records {
		items[i] = toRecordItem(r)
	}

	return &RecordListResponse{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Items:  items,
	}, nil
}

// Summary reports TotalRecords over the filtered set plus per-device-latest
// pass/fail figures, and the same figures restricted to the current server
// UTC date. "Today" always follows the server clock, never the caller's
// timezone.
func (s *Service) Summary(ctx context.Context, q *FilterQuery) (*SummaryResponse, error) {
	if err := utils.ValidateStruct(q); err != nil {
		return nil, appErrors.NewAppError("VALIDATION_ERROR", "Invalid query parameters", err)
	}

	filter := domainRecord.Filter{
		SerialNumber: q.SN,
		DateFrom:     q.DateFrom,
		DateTo:       q.DateTo,
	}

	totalRecords, err := s.repo.CountAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	overall, err := s.repo.LatestPerDevice(ctx, filter)
	if err != nil {
		return nil, err
	}

	todayFilter := filter
	todayFilter.DateEquals = s.now().UTC().Format(dateLayout)
	today, err := s.repo.LatestPerDevice(ctx, todayFilter)
	if err != nil {
		return nil, err
	}

	return &SummaryResponse{
		TotalRecords:  totalRecords,
		SummaryCounts: toSummaryCounts(overall),
		Today:         toSummaryCounts(today),
	}, nil
}

func (s *Service) SerialNumbers(ctx context.Context) ([]string, error) {
	serials, err := s.repo.DistinctSerialNumbers(ctx)
	if err != nil {
		return nil, err
	}
	if serials == nil {
		serials = []string{}
	}
	return serials, nil
}

// ExportCSV renders the full filtered record set as CSV, one row per record,
// ordered newest first. Stored blobs land in single cells with newlines
// folded to spaces.
func (s *Service) ExportCSV(ctx context.Context, q *FilterQuery) ([]byte, error) {
	if err := utils.ValidateStruct(q); err != nil {
		return nil, appErrors.NewAppError("VALIDATION_ERROR", "Invalid query parameters", err)
	}

	rows, err := s.repo.ExportRows(ctx, domainRecord.Filter{
		SerialNumber: q.SN,
		DateFrom:     q.DateFrom,
		DateTo:       q.DateTo,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		cells := []string{
			row.ID,
			row.CreatedAt.UTC().Format(createdAtLayout),
			stringCell(row.StartTime),
			stringCell(row.EndTime),
			floatCell(row.DurationSeconds),
			row.DeviceSerialNumber,
			stringCell(row.DeviceName),
			stringCell(row.DeviceFirmwareVersion),
			stringCell(row.DeviceBootloaderVersion),
			stringCell(row.DeviceHardwareRevision),
			boolCell(row.OverallPassed),
			boolCell(row.NeedRetest),
			blobCell(row.StepsSummary),
			blobCell(row.StepResults),
			blobCell(row.TestDetails),
		}
		if err := w.Write(cells); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toSummaryCounts(c domainRecord.PassCounts) SummaryCounts {
	return SummaryCounts{
		Total:           c.Total,
		Passed:          c.Passed,
		Failed:          c.Total - c.Passed,
		PassRatePercent: passRatePercent(c.Passed, c.Total),
	}
}

// passRatePercent rounds to one decimal place; zero devices yield 0.0.
func passRatePercent(passed, total int64) float64 {
	if total == 0 {
		return 0.0
	}
	return math.Round(1000.0*float64(passed)/float64(total)) / 10.0
}

func stringCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatCell(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

func boolCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func blobCell(blob string) string {
	return strings.ReplaceAll(blob, "\n", " ")
}
