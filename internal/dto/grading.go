package dto

import "github.com/noah-isme/univ-erp-api/internal/models"

// FinalGradesRequest carries the A+, A, B, C and D cut-offs.
type FinalGradesRequest struct {
	Boundaries models.GradeBoundaries `json:"boundaries" binding:"required"`
}
