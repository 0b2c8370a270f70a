package models

// Platform roles used for cohort routing.
const (
	RoleStudent    = "student"
	RoleEnterprise = "enterprise"
	RoleAdmin      = "admin"
)

// User is the minimal directory row the notification core needs: identity,
// role for cohort fan-out, and an active flag. Profile data lives with the
// external user collaborator.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Name     string `json:"name"`

	Role     string `gorm:"type:varchar(32);not null;index" json:"role"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`
}
