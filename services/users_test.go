package services

import (
	"context"
	"testing"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/models"
)

func newUserFixture() (*UserService, *fakeGateway, *fakeProcessor) {
	gateway := newFakeGateway()
	processor := &fakeProcessor{
		log:         &callLog{},
		customerURL: "https://api-sandbox.dwolla.com/customers/9f1a2b3c",
	}
	return NewUserService(gateway, NewUserStore(gateway, userCollection), processor), gateway, processor
}

func signUpRequest() models.SignUpRequest {
	return models.SignUpRequest{
		FirstName:   "Jane",
		LastName:    "Doe",
		Address1:    "1 Main St",
		City:        "Austin",
		State:       "TX",
		PostalCode:  "78701",
		DateOfBirth: "1990-01-01",
		SSN:         "1234",
		Email:       "jane@example.com",
		Password:    "correct-horse",
	}
}

func TestSignUp(t *testing.T) {
	svc, gateway, processor := newUserFixture()

	result, err := svc.SignUp(context.Background(), signUpRequest())
	if err != nil {
		t.Fatalf("SignUp() failed: %v", err)
	}
	if result.Session == nil || result.Session.Secret == "" {
		t.Fatal("SignUp() returned no session secret")
	}
	if result.User.DwollaCustomerID != "9f1a2b3c" {
		t.Errorf("DwollaCustomerID = %q, want 9f1a2b3c", result.User.DwollaCustomerID)
	}
	if result.User.DwollaCustomerURL != processor.customerURL {
		t.Errorf("DwollaCustomerURL = %q", result.User.DwollaCustomerURL)
	}

	docs := gateway.docs(userCollection)
	if len(docs) != 1 {
		t.Fatalf("stored %d user documents, want 1", len(docs))
	}
	if _, ok := docs[0]["ssn"]; ok {
		t.Error("ssn must not be persisted")
	}

	me, err := svc.GetLoggedInUser(context.Background(), result.Session.Secret)
	if err != nil {
		t.Fatalf("GetLoggedInUser() failed: %v", err)
	}
	if me.Email != "jane@example.com" || me.ID != result.User.ID {
		t.Errorf("GetLoggedInUser() = %+v", me)
	}
}

func TestSignUp_ProcessorFailure(t *testing.T) {
	svc, gateway, processor := newUserFixture()
	processor.customerErr = apperr.WithStatus(apperr.UpstreamRejected, "dwolla.createCustomer", 400, nil)

	_, err := svc.SignUp(context.Background(), signUpRequest())
	if !apperr.Is(err, apperr.UpstreamRejected) {
		t.Fatalf("expected UpstreamRejected, got %v", err)
	}
	if len(gateway.docs(userCollection)) != 0 {
		t.Error("no user document expected")
	}
}

func TestSignIn(t *testing.T) {
	svc, _, _ := newUserFixture()
	req := signUpRequest()
	if _, err := svc.SignUp(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	result, err := svc.SignIn(context.Background(), req.Email, req.Password)
	if err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}
	if result.User.FirstName != "Jane" {
		t.Errorf("FirstName = %q", result.User.FirstName)
	}

	_, err = svc.SignIn(context.Background(), req.Email, "wrong-password")
	if !apperr.Is(err, apperr.UpstreamRejected) || apperr.StatusOf(err) != 401 {
		t.Errorf("wrong password: got %v", err)
	}
}

func TestSignIn_MissingProfileDeletesSession(t *testing.T) {
	svc, gateway, _ := newUserFixture()
	if _, err := gateway.CreateAccount(context.Background(), "orphan@example.com", "correct-horse", "Orphan"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.SignIn(context.Background(), "orphan@example.com", "correct-horse")
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	gateway.mu.Lock()
	open := len(gateway.sessions)
	gateway.mu.Unlock()
	if open != 0 {
		t.Errorf("%d sessions left open, want 0", open)
	}
}

func TestSignOut(t *testing.T) {
	svc, _, _ := newUserFixture()
	result, err := svc.SignUp(context.Background(), signUpRequest())
	if err != nil {
		t.Fatal(err)
	}
	secret := result.Session.Secret

	if err := svc.SignOut(context.Background(), secret); err != nil {
		t.Fatalf("SignOut() failed: %v", err)
	}
	if _, err := svc.GetLoggedInUser(context.Background(), secret); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("after sign-out expected NotFound, got %v", err)
	}
	if err := svc.SignOut(context.Background(), secret); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second sign-out expected NotFound, got %v", err)
	}
}

func TestGetLoggedInUser_NoSession(t *testing.T) {
	svc, _, _ := newUserFixture()
	if _, err := svc.GetLoggedInUser(context.Background(), ""); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
