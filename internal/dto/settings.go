package dto

// MaintenanceRequest toggles maintenance mode.
type MaintenanceRequest struct {
	On *bool `json:"on" binding:"required"`
}

// DeadlineRequest sets a calendar-date deadline (YYYY-MM-DD).
type DeadlineRequest struct {
	Date string `json:"date" binding:"required"`
}

// TermRequest sets the current semester and year.
type TermRequest struct {
	Semester string `json:"semester" binding:"required"`
	Year     int    `json:"year" binding:"required"`
}
