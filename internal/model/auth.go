package model

type Role string

const (
	RoleReceptionist Role = "receptionist"
	RoleDoctor       Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RoleReceptionist || r == RoleDoctor
}

type LoginRequest struct {
	Role         Role   `json:"role" binding:"required"`
	AccessCode   string `json:"accessCode"`
	StaySignedIn bool   `json:"staySignedIn"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  Role   `json:"role"`
}
