package models

import "time"

// RecordModel represents the database row for one production-test result.
// StepsSummary, StepResults and TestDetails are stored as serialized JSON
// text and re-parsed on read.
type RecordModel struct {
	ID                      string    `gorm:"type:varchar(36);primaryKey"`
	CreatedAt               time.Time `gorm:"not null;index:idx_pt_created"`
	StartTime               *string   `gorm:"type:varchar(64)"`
	EndTime                 *string   `gorm:"type:varchar(64)"`
	DurationSeconds         *float64
	DeviceSerialNumber      string  `gorm:"type:varchar(255);not null;index:idx_pt_sn"`
	DeviceName              *string `gorm:"type:varchar(255)"`
	DeviceFirmwareVersion   *string `gorm:"type:varchar(100)"`
	DeviceBootloaderVersion *string `gorm:"type:varchar(100)"`
	DeviceHardwareRevision  *string `gorm:"type:varchar(100)"`
	OverallPassed           bool    `gorm:"not null"`
	NeedRetest              bool    `gorm:"not null"`
	StepsSummary            *string `gorm:"type:text"`
	StepResults             *string `gorm:"type:text"`
	TestDetails             *string `gorm:"type:text"`
}

func (RecordModel) TableName() string {
	return "production_tests"
}
