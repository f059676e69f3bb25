package record

import (
	domainRecord "prodtest-collector/internal/domain/record"
)

// IngestRequest is the JSON body the test tool POSTs when a run finishes.
// Field names are part of the client contract and must not change.
type IngestRequest struct {
	StartTime               *string            `json:"startTime"`
	EndTime                 *string            `json:"endTime"`
	DurationSeconds         *float64           `json:"durationSeconds"`
	DeviceSerialNumber      string             `json:"deviceSerialNumber" validate:"required"`
	DeviceName              *string            `json:"deviceName"`
	DeviceFirmwareVersion   *string            `json:"deviceFirmwareVersion"`
	DeviceBootloaderVersion *string            `json:"deviceBootloaderVersion"`
	DeviceHardwareRevision  *string            `json:"deviceHardwareRevision"`
	OverallPassed           *bool              `json:"overallPassed" validate:"required"`
	NeedRetest              bool               `json:"needRetest"`
	StepsSummary            []StepSummaryInput `json:"stepsSummary" validate:"omitempty,dive"`
	StepResults             map[string]string  `json:"stepResults"`
	TestDetails             map[string]any     `json:"testDetails"`
}

type StepSummaryInput struct {
	StepID string `json:"stepId" validate:"required"`
	Status string `json:"status" validate:"required,step_status"`
}

type IngestResponse struct {
	OK        bool   `json:"ok"`
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// FilterQuery holds the shared optional query filters of the read endpoints.
type FilterQuery struct {
	SN       string `form:"sn"`
	DateFrom string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
}

type RecordQuery struct {
	Limit    int    `form:"limit,default=50"`
	Offset   int    `form:"offset"`
	SN       string `form:"sn"`
	DateFrom string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
}

type RecordItem struct {
	ID                      string                         `json:"id"`
	CreatedAt               string                         `json:"createdAt"`
	StartTime               *string                        `json:"startTime"`
	EndTime                 *string                        `json:"endTime"`
	DurationSeconds         *float64                       `json:"durationSeconds"`
	DeviceSerialNumber      string                         `json:"deviceSerialNumber"`
	DeviceName              *string                        `json:"deviceName"`
	DeviceFirmwareVersion   *string                        `json:"deviceFirmwareVersion"`
	DeviceBootloaderVersion *string                        `json:"deviceBootloaderVersion"`
	DeviceHardwareRevision  *string                        `json:"deviceHardwareRevision"`
	OverallPassed           bool                           `json:"overallPassed"`
	NeedRetest              bool                           `json:"needRetest"`
	StepsSummary            []domainRecord.StepSummaryItem `json:"stepsSummary"`
	StepResults             map[string]string              `json:"stepResults"`
	TestDetails             map[string]any                 `json:"testDetails"`
}

type RecordListResponse struct {
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Items  []RecordItem `json:"items"`
}

// SummaryCounts is one per-device-latest aggregate bucket: every distinct
// device counted once, through its most recent record.
type SummaryCounts struct {
	Total           int64   `json:"total"`
	Passed          int64   `json:"passed"`
	Failed          int64   `json:"failed"`
	PassRatePercent float64 `json:"passRatePercent"`
}

// SummaryResponse pairs the deduplicated device figures with TotalRecords,
// which counts every test run. The two denominators are intentionally
// different and must not be conflated.
type SummaryResponse struct {
	TotalRecords int64 `json:"totalRecords"`
	SummaryCounts
	Today SummaryCounts `json:"today"`
}

func toRecordItem(r *domainRecord.TestRecord) RecordItem {
	return RecordItem{
		ID:                      r.ID,
		CreatedAt:               r.CreatedAt.UTC().Format(createdAtLayout),
		StartTime:               r.StartTime,
		EndTime:                 r.EndTime,
		DurationSeconds:         r.DurationSeconds,
		DeviceSerialNumber:      r.DeviceSerialNumber,
		DeviceName:              r.DeviceName,
		DeviceFirmwareVersion:   r.DeviceFirmwareVersion,
		DeviceBootloaderVersion: r.DeviceBootloaderVersion,
		DeviceHardwareRevision:  r.DeviceHardwareRevision,
		OverallPassed:           r.OverallPassed,
		NeedRetest:              r.NeedRetest,
		StepsSummary:            r.StepsSummary,
		StepResults:             r.StepResults,
		TestDetails:             r.TestDetails,
	}
}

func toDomainSteps(steps []StepSummaryInput) []domainRecord.StepSummaryItem {
	out := make([]domainRecord.StepSummaryItem, len(steps))
	for i, s := range steps {
		out[i] = domainRecord.StepSummaryItem{
			StepID: s.StepID,
			Status: domainRecord.StepStatus(s.Status),
		}
	}
	return out
}
