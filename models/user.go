package models

// ============================================================================
// IDENTITY & USER
// ============================================================================

// Identity is the identity backend's own record. The credential hash never
// leaves the backend.
type Identity struct {
	ID    string `json:"$id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// User is the profile document stored in the user collection.
type User struct {
	ID                string `json:"$id,omitempty"`
	UserID            string `json:"userId"`
	Email             string `json:"email"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Address1          string `json:"address1"`
	City              string `json:"city"`
	State             string `json:"state"`
	PostalCode        string `json:"postalCode"`
	DateOfBirth       string `json:"dateOfBirth"`
	DwollaCustomerID  string `json:"dwollaCustomerId"`
	DwollaCustomerURL string `json:"dwollaCustomerUrl"`
}

func (u User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// Session is an opaque secret bound to an identity. Secret is only populated
// right after creation.
type Session struct {
	ID         string `json:"$id"`
	IdentityID string `json:"userId"`
	Secret     string `json:"secret"`
	Expire     string `json:"expire"`
}

// ============================================================================
// AUTHENTICATION REQUESTS
// ============================================================================

type SignUpRequest struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	Address1    string `json:"address1" binding:"required"`
	City        string `json:"city" binding:"required"`
	State       string `json:"state" binding:"required"`
	PostalCode  string `json:"postalCode" binding:"required"`
	DateOfBirth string `json:"dateOfBirth" binding:"required"`
	SSN         string `json:"ssn" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResult is what sign-up and sign-in hand back to the handler, which
// moves the session secret into the cookie.
type AuthResult struct {
	User    *User
	Session *Session
}
