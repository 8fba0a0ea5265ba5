package domain

type Identity struct {
	ID               string
	Name             string
	Email            string
	BusinessID       string
	Role             string
	SquareCustomerID string
	// CreatedAt is a unix timestamp in milliseconds, as issued by the account service.
	CreatedAt int64
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
