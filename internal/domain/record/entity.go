package record

import "time"

// StepStatus is the verdict of a single test step as reported by the client.
type StepStatus string

const (
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepSummaryItem is one entry of a test run's ordered step list.
type StepSummaryItem struct {
	StepID string     `json:"stepId"`
	Status StepStatus `json:"status"`
}

// TestRecord represents one uploaded production-test result. Records are
// immutable once stored; ID and CreatedAt are assigned by the service, never
// by the client.
type TestRecord struct {
	ID                      string
	CreatedAt               time.Time
	StartTime               *string
	EndTime                 *string
	DurationSeconds         *float64
	DeviceSerialNumber      string
	DeviceName              *string
	DeviceFirmwareVersion   *string
	DeviceBootloaderVersion *string
	DeviceHardwareRevision  *string
	OverallPassed           bool
	NeedRetest              bool
	StepsSummary            []StepSummaryItem
	StepResults             map[string]string
	TestDetails             map[string]any
}

// Filter restricts record queries. Zero values mean "no restriction".
// Dates are calendar days (YYYY-MM-DD) compared against the date portion
// of CreatedAt.
type Filter struct {
	SerialNumber string
	DateFrom     string
	DateTo       string
	DateEquals   string
}

// Page bounds a listing query.
type Page struct {
	Limit  int
	Offset int
}

// PassCounts is the per-device-latest aggregate: Total distinct devices in
// the filtered set, of which Passed have a passing latest record.
type PassCounts struct {
	Total  int64
	Passed int64
}

// ExportRow is the flat tabular projection of one stored record. The three
// blob fields carry the stored serialized text verbatim (empty when absent).
type ExportRow struct {
	ID                      string
	CreatedAt               time.Time
	StartTime               *string
	EndTime                 *string
	DurationSeconds         *float64
	DeviceSerialNumber      string
	DeviceName              *string
	DeviceFirmwareVersion   *string
	DeviceBootloaderVersion *string
	DeviceHardwareRevision  *string
	OverallPassed           bool
	NeedRetest              bool
	StepsSummary            string
	StepResults             string
	TestDetails             string
}
