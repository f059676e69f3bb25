package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	domainRecord "prodtest-collector/internal/domain/record"
	"prodtest-collector/internal/infrastructure/database/postgres/models"
	"strings"

	"gorm.io/gorm"
)

// RecordRepository implements domain record.Repository on top of the
// production_tests table.
type RecordRepository struct {
	db *DB
}

func NewRecordRepository(db *DB) domainRecord.Repository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, rec *domainRecord.TestRecord) error {
	dbModel, err := toRecordModel(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}

	if err := r.db.DB.WithContext(ctx).Create(dbModel).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key value") ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domainRecord.ErrDuplicateRecord
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	return nil
}

func (r *RecordRepository) List(ctx context.Context, f domainRecord.Filter, p domainRecord.Page) ([]*domainRecord.TestRecord, int64, error) {
	var total int64

	db := applyFilter(r.db.DB.WithContext(ctx).Model(&models.RecordModel{}), f)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	var dbModels []models.RecordModel
	err := db.Order("created_at DESC, id DESC").
		Limit(p.Limit).
		Offset(p.Offset).
		Find(&dbModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]*domainRecord.TestRecord, len(dbModels))
	for i := range dbModels {
		records[i] = toRecordEntity(&dbModels[i])
	}

	return records, total, nil
}

func (r *RecordRepository) CountAll(ctx context.Context, f domainRecord.Filter) (int64, error) {
	var total int64
	err := applyFilter(r.db.DB.WithContext(ctx).Model(&models.RecordModel{}), f).
		Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, nil
}

// LatestPerDevice picks, per device in the filtered set, the record with the
// maximum created_at (ties broken by maximum id, so equal-timestamp
// candidates resolve to exactly one row) and counts passing verdicts among
// those. The SQL sticks to date()/MAX/CASE so it runs identically on
// postgres and sqlite.
func (r *RecordRepository) LatestPerDevice(ctx context.Context, f domainRecord.Filter) (domainRecord.PassCounts, error) {
	where, args := filterConditions(f)

	query := fmt.Sprintf(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN r.overall_passed THEN 1 ELSE 0 END), 0) AS passed
		FROM production_tests r
		WHERE r.id IN (
		    SELECT MAX(t.id)
		    FROM production_tests t
		    INNER JOIN (
		        SELECT device_serial_number, MAX(created_at) AS max_created
		        FROM production_tests
		        WHERE %s
		        GROUP BY device_serial_number
		    ) lat ON t.device_serial_number = lat.device_serial_number
		         AND t.created_at = lat.max_created
		    GROUP BY t.device_serial_number
		)`, where)

	var row struct {
		Total  int64
		Passed int64
	}
	if err := r.db.DB.WithContext(ctx).Raw(query, args...).Scan(&row).Error; err != nil {
		return domainRecord.PassCounts{}, fmt.Errorf("failed to aggregate latest records: %w", err)
	}

	return domainRecord.PassCounts{Total: row.Total, Passed: row.Passed}, nil
}

func (r *RecordRepository) DistinctSerialNumbers(ctx context.Context) ([]string, error) {
	var serials []string
	err := r.db.DB.WithContext(ctx).Model(&models.RecordModel{}).
		Where("device_serial_number <> ''").
		Distinct().
		Order("device_serial_number ASC").
		Pluck("device_serial_number", &serials).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list serial numbers: %w", err)
	}
	return serials, nil
}

func (r *RecordRepository) ExportRows(ctx context.Context, f domainRecord.Filter) ([]domainRecord.ExportRow, error) {
	var dbModels []models.RecordModel
	err := applyFilter(r.db.DB.WithContext(ctx).Model(&models.RecordModel{}), f).
		Order("created_at DESC, id DESC").
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to export records: %w", err)
	}

	rows := make([]domainRecord.ExportRow, len(dbModels))
	for i := range dbModels {
		rows[i] = toExportRow(&dbModels[i])
	}
	return rows, nil
}

func applyFilter(db *gorm.DB, f domainRecord.Filter) *gorm.DB {
	if sn := strings.TrimSpace(f.SerialNumber); sn != "" {
		db = db.Where("device_serial_number = ?", sn)
	}
	if f.DateFrom != "" {
		db = db.Where("date(created_at) >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		db = db.Where("date(created_at) <= ?", f.DateTo)
	}
	if f.DateEquals != "" {
		db = db.Where("date(created_at) = ?", f.DateEquals)
	}
	return db
}

// filterConditions renders the filter as a WHERE fragment for raw queries.
// Blank serials are always excluded so a device count never includes them.
func filterConditions(f domainRecord.Filter) (string, []any) {
	conds := []string{"device_serial_number <> ''"}
	var args []any

	if sn := strings.TrimSpace(f.SerialNumber); sn != "" {
		conds = append(conds, "device_serial_number = ?")
		args = append(args, sn)
	}
	if f.DateFrom != "" {
		conds = append(conds, "date(created_at) >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conds = append(conds, "date(created_at) <= ?")
		args = append(args, f.DateTo)
	}
	if f.DateEquals != "" {
		conds = append(conds, "date(created_at) = ?")
		args = append(args, f.DateEquals)
	}

	return strings.Join(conds, " AND "), args
}

// Helper functions to convert between domain entities and database models.

func toRecordModel(rec *domainRecord.TestRecord) (*models.RecordModel, error) {
	steps := rec.StepsSummary
	if steps == nil {
		steps = []domainRecord.StepSummaryItem{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	stepsText := string(stepsJSON)

	m := &models.RecordModel{
		ID:                      rec.ID,
		CreatedAt:               rec.CreatedAt,
		StartTime:               rec.StartTime,
		EndTime:                 rec.EndTime,
		DurationSeconds:         rec.DurationSeconds,
		DeviceSerialNumber:      rec.DeviceSerialNumber,
		DeviceName:              rec.DeviceName,
		DeviceFirmwareVersion:   rec.DeviceFirmwareVersion,
		DeviceBootloaderVersion: rec.DeviceBootloaderVersion,
		DeviceHardwareRevision:  rec.DeviceHardwareRevision,
		OverallPassed:           rec.OverallPassed,
		NeedRetest:              rec.NeedRetest,
		StepsSummary:            &stepsText,
	}

	if rec.StepResults != nil {
		resultsJSON, err := json.Marshal(rec.StepResults)
		if err != nil {
			return nil, err
		}
		resultsText := string(resultsJSON)
		m.StepResults = &resultsText
	}
	if rec.TestDetails != nil {
		detailsJSON, err := json.Marshal(rec.TestDetails)
		if err != nil {
			return nil, err
		}
		detailsText := string(detailsJSON)
		m.TestDetails = &detailsText
	}

	return m, nil
}

func toRecordEntity(m *models.RecordModel) *domainRecord.TestRecord {
	return &domainRecord.TestRecord{
		ID:                      m.ID,
		CreatedAt:               m.CreatedAt,
		StartTime:               m.StartTime,
		EndTime:                 m.EndTime,
		DurationSeconds:         m.DurationSeconds,
		DeviceSerialNumber:      m.DeviceSerialNumber,
		DeviceName:              m.DeviceName,
		DeviceFirmwareVersion:   m.DeviceFirmwareVersion,
		DeviceBootloaderVersion: m.DeviceBootloaderVersion,
		DeviceHardwareRevision:  m.DeviceHardwareRevision,
		OverallPassed:           m.OverallPassed,
		NeedRetest:              m.NeedRetest,
		StepsSummary:            decodeSteps(m.StepsSummary),
		StepResults:             decodeStepResults(m.StepResults),
		TestDetails:             decodeTestDetails(m.TestDetails),
	}
}

func toExportRow(m *models.RecordModel) domainRecord.ExportRow {
	return domainRecord.ExportRow{
		ID:                      m.ID,
		CreatedAt:               m.CreatedAt,
		StartTime:               m.StartTime,
		EndTime:                 m.EndTime,
		DurationSeconds:         m.DurationSeconds,
		DeviceSerialNumber:      m.DeviceSerialNumber,
		DeviceName:              m.DeviceName,
		DeviceFirmwareVersion:   m.DeviceFirmwareVersion,
		DeviceBootloaderVersion: m.DeviceBootloaderVersion,
		DeviceHardwareRevision:  m.DeviceHardwareRevision,
		OverallPassed:           m.OverallPassed,
		NeedRetest:              m.NeedRetest,
		StepsSummary:            stringValue(m.StepsSummary),
		StepResults:             stringValue(m.StepResults),
		TestDetails:             stringValue(m.TestDetails),
	}
}

// The decode helpers degrade corrupt blob text to an empty value instead of
// failing the whole read.

func decodeSteps(blob *string) []domainRecord.StepSummaryItem {
	steps := []domainRecord.StepSummaryItem{}
	if blob == nil || *blob == "" {
		return steps
	}
	if err := json.Unmarshal([]byte(*blob), &steps); err != nil {
		return []domainRecord.StepSummaryItem{}
	}
	return steps
}

func decodeStepResults(blob *string) map[string]string {
	if blob == nil || *blob == "" {
		return nil
	}
	var results map[string]string
	if err := json.Unmarshal([]byte(*blob), &results); err != nil {
		return nil
	}
	return results
}

func decodeTestDetails(blob *string) map[string]any {
	if blob == nil || *blob == "" {
		return nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(*blob), &details); err != nil {
		return nil
	}
	return details
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
