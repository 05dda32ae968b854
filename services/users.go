package services

import (
	"context"
	"fmt"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"
)

type UserService struct {
	gateway   IdentityGateway
	users     *UserStore
	processor PaymentProcessor
}

func NewUserService(gateway IdentityGateway, users *UserStore, processor PaymentProcessor) *UserService {
	return &UserService{gateway: gateway, users: users, processor: processor}
}

// SignUp creates the identity, the processor customer and the profile
// document, then opens a session. A failure after the identity exists leaves
// the identity in place; users are never deleted here.
func (s *UserService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResult, error) {
	identity, err := s.gateway.CreateAccount(ctx, req.Email, req.Password, req.FirstName+" "+req.LastName)
	if err != nil {
		utils.LogAuthAction("SIGN_UP", req.Email, false)
		return nil, fmt.Errorf("create identity: %w", err)
	}

	customerURL, err := s.processor.CreateCustomer(ctx, models.CustomerParams{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Type:        "personal",
		Address1:    req.Address1,
		City:        req.City,
		State:       req.State,
		PostalCode:  req.PostalCode,
		DateOfBirth: req.DateOfBirth,
		SSN:         req.SSN,
	})
	if err != nil {
		utils.SafeError("❌ Dwolla customer creation failed for identity %s: %v", utils.MaskID(identity.ID), err)
		return nil, fmt.Errorf("create processor customer: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		UserID:            identity.ID,
		Email:             req.Email,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Address1:          req.Address1,
		City:              req.City,
		State:             req.State,
		PostalCode:        req.PostalCode,
		DateOfBirth:       req.DateOfBirth,
		DwollaCustomerID:  ExtractCustomerID(customerURL),
		DwollaCustomerURL: customerURL,
	})
	if err != nil {
		utils.SafeError("❌ User document creation failed for identity %s: %v", utils.MaskID(identity.ID), err)
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	utils.LogAuthAction("SIGN_UP", req.Email, true)
	return &models.AuthResult{User: user, Session: session}, nil
}

func (s *UserService) SignIn(ctx context.Context, email, password string) (*models.AuthResult, error) {
	session, err := s.gateway.CreateSession(ctx, email, password)
	if err != nil {
		utils.LogAuthAction("SIGN_IN", email, false)
		return nil, fmt.Errorf("open session: %w", err)
	}

	user, err := s.users.GetByIdentity(ctx, session.IdentityID)
	if err != nil {
		// The caller never sees the secret, so nothing else can end the session.
		if delErr := s.gateway.DeleteSession(ctx, session.Secret); delErr != nil {
			utils.SafeWarn("⚠️ Could not delete session for identity %s: %v", utils.MaskID(session.IdentityID), delErr)
		}
		utils.LogAuthAction("SIGN_IN", email, false)
		return nil, err
	}

	utils.LogAuthAction("SIGN_IN", email, true)
	return &models.AuthResult{User: user, Session: session}, nil
}

// GetLoggedInUser resolves a session secret to its profile document.
func (s *UserService) GetLoggedInUser(ctx context.Context, sessionSecret string) (*models.User, error) {
	identity, err := s.gateway.GetAccount(ctx, sessionSecret)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	user, err := s.users.GetByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SignOut(ctx context.Context, sessionSecret string) error {
	if err := s.gateway.DeleteSession(ctx, sessionSecret); err != nil {
		if !apperr.Is(err, apperr.NotFound) {
			utils.SafeWarn("⚠️ Sign-out failed: %v", err)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
