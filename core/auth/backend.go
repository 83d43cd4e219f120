package auth

import "context"

// Backend is the part of the REST API the session manager talks to.
type Backend interface {
	Login(ctx context.Context, req LoginRequest) (LoginResult, error)
	RegisterStudent(ctx context.Context, req StudentRegistration) (RegistrationResult, error)
	CurrentUser(ctx context.Context, authz Authorization) (CurrentUser, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirm) error
}

// Authorization is what an authenticated API call needs: the current pair
// and a hook receiving any pair silently refreshed mid-request.
type Authorization struct {
	Pair        CredentialPair
	OnRefreshed func(CredentialPair)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required,notblank"`
		Password string `json:"password" validate:"required"`
	}

	LoginUser struct {
		ID               int    `json:"id"`
		Username         string `json:"username"`
		Role             string `json:"role"`
		StudentProfileID *int   `json:"student_profile_id"`
		TeacherProfileID *int   `json:"teacher_profile_id"`
	}

	LoginResult struct {
		Access  string    `json:"access"`
		Refresh string    `json:"refresh"`
		Message string    `json:"message,omitempty"`
		User    LoginUser `json:"user"`
	}

	StudentRegistration struct {
		Username  string `json:"username" validate:"required,notblank"`
		FullName  string `json:"full_name,omitempty"`
		Email     string `json:"email" validate:"required,email"`
		Password1 string `json:"password1" validate:"required,min=8"`
		Password2 string `json:"password2" validate:"required,eqfield=Password1"`
	}

	RegisteredUser struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	StudentProfile struct {
		ID       int    `json:"id"`
		UserID   int    `json:"user_id"`
		FullName string `json:"full_name"`
	}

	RegistrationResult struct {
		Access         string          `json:"access"`
		Refresh        string          `json:"refresh"`
		Message        string          `json:"message,omitempty"`
		User           RegisteredUser  `json:"user"`
		StudentProfile *StudentProfile `json:"student_profile"`
	}

	AcademicYear struct {
		ID        int    `json:"id"`
		Year      string `json:"year"`
		IsCurrent bool   `json:"is_current"`
	}

	CurrentUser struct {
		ID                  int           `json:"id"`
		Username            string        `json:"username"`
		Email               string        `json:"email"`
		Roles               RoleFlags     `json:"roles"`
		StudentProfileID    *int          `json:"student_profile_id"`
		TeacherProfileID    *int          `json:"teacher_profile_id"`
		CurrentAcademicYear *AcademicYear `json:"current_academic_year"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	PasswordResetConfirm struct {
		UID          string `json:"uid" validate:"required"`
		Token        string `json:"token" validate:"required"`
		NewPassword1 string `json:"new_password1" validate:"required,min=8"`
		NewPassword2 string `json:"new_password2" validate:"required,eqfield=NewPassword1"`
	}
)
