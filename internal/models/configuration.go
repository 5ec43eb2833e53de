package models

import "time"

// Setting keys persisted in the settings table.
const (
	SettingMaintenanceOn        = "maintenance_on"
	SettingCurrentSemester      = "current_semester"
	SettingCurrentYear          = "current_year"
	SettingRegistrationDeadline = "registration_deadline"
	SettingDropDeadline         = "drop_deadline"
)

// SettingKeys lists every key read into a Settings snapshot.
var SettingKeys = []string{
	SettingMaintenanceOn,
	SettingCurrentSemester,
	SettingCurrentYear,
	SettingRegistrationDeadline,
	SettingDropDeadline,
}

// DateLayout is the ISO calendar date format used for deadlines.
const DateLayout = "2006-01-02"

// Setting is a persisted key/value row.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Settings is a typed snapshot of the administrative settings. Deadlines are calendar
// dates; nil means not configured.
type Settings struct {
	MaintenanceOn        bool       `json:"maintenance_on"`
	CurrentSemester      string     `json:"current_semester,omitempty"`
	CurrentYear          int        `json:"current_year,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	DropDeadline         *time.Time `json:"drop_deadline,omitempty"`
}
