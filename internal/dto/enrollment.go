package dto

// RegisterRequest asks to enroll the caller into a section.
type RegisterRequest struct {
	SectionID int64 `json:"section_id" binding:"required,gt=0"`
}

// CatalogQuery filters the catalog by term. Empty values select the current term.
type CatalogQuery struct {
	Semester string `form:"semester"`
	Year     int    `form:"year"`
}
