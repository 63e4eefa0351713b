package models

// AccessState represents where a user stands in a class access request.
type AccessState string

// Possible access states.
const (
	AccessStatePending  AccessState = "PENDING"
	AccessStateApproved AccessState = "APPROVED"
	AccessStateRejected AccessState = "REJECTED"
	AccessStateRevoked  AccessState = "REVOKED"
)

// ClassAccess is one user's access record for a class, joined with the user's profile.
type ClassAccess struct {
	ClassID   string      `db:"class_id" json:"classId"`
	UserID    string      `db:"user_id" json:"userId"`
	State     AccessState `db:"state" json:"state"`
	Role      string      `db:"role" json:"role"`
	FirstName string      `db:"first_name" json:"firstName"`
	LastName  string      `db:"last_name" json:"lastName"`
	FullName  string      `db:"full_name" json:"fullName"`
	Email     string      `db:"email" json:"email"`
}

// Approved reports whether the access entry grants roster membership.
func (a ClassAccess) Approved() bool {
	return a.State == AccessStateApproved
}
