package models

// RoleAdmin is the only explicit role; every other user is a regular user.
const RoleAdmin = "admin"

// User is an account record. Credentials never appear on this type.
type User struct {
	ID       string   `json:"id" validate:"required"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Verified bool     `json:"verified"`
	Avatar   string   `json:"avatar,omitempty"`
	Created  DateTime `json:"created"`
	Updated  DateTime `json:"updated"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// RegisterInput creates an account.
type RegisterInput struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
	Name            string `json:"name" validate:"max=100"`
}

// LoginInput authenticates with email and password.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserUpdate is the admin-side partial update.
type UserUpdate struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin user"`
	Verified *bool   `json:"verified"`
}

// Fields renders only the fields that are set. Role "user" clears the role.
func (u UserUpdate) Fields() map[string]any {
	f := map[string]any{}
	setString(f, "name", u.Name)
	setString(f, "email", u.Email)
	if u.Role != nil {
		if *u.Role == RoleAdmin {
			f["role"] = RoleAdmin
		} else {
			f["role"] = ""
		}
	}
	if u.Verified != nil {
		f["verified"] = *u.Verified
	}
	return f
}

// ProfileUpdate is the self-service profile update.
type ProfileUpdate struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Email *string `json:"email" validate:"omitempty,email,max=254"`
}

// PasswordChange is the self-service password change.
type PasswordChange struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// PasswordResetInput requests a reset email.
type PasswordResetInput struct {
	Email string `json:"email" validate:"required,email"`
}
