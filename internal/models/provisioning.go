package models

// SagaState tracks a provisioning run across the two stores.
type SagaState string

const (
	SagaPending           SagaState = "PENDING"
	SagaCredentialCreated SagaState = "CREDENTIAL_CREATED"
	SagaProfileCreated    SagaState = "PROFILE_CREATED"
	SagaRolledBack        SagaState = "ROLLED_BACK"
	SagaInconsistent      SagaState = "INCONSISTENT"
)

// CreateAccountRequest provisions a credential and, for non-admins, its profile.
type CreateAccountRequest struct {
	Username   string   `json:"username" validate:"required,max=64"`
	Password   string   `json:"password" validate:"required,max=72"`
	Role       UserRole `json:"role" validate:"required,oneof=ADMIN INSTRUCTOR STUDENT"`
	RollNo     string   `json:"roll_no,omitempty" validate:"required_if=Role STUDENT"`
	Program    string   `json:"program,omitempty"`
	Year       int      `json:"year,omitempty" validate:"omitempty,min=1,max=8"`
	Name       string   `json:"name,omitempty" validate:"required_if=Role INSTRUCTOR"`
	Department string   `json:"department,omitempty"`
}

// ProvisioningResult reports the terminal saga state of a successful run.
type ProvisioningResult struct {
	SagaID    string    `json:"saga_id"`
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	State     SagaState `json:"state"`
}
