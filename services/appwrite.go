package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/LovationAdmin/horizon-api/apperr"
	"github.com/LovationAdmin/horizon-api/config"
	"github.com/LovationAdmin/horizon-api/models"
	"github.com/LovationAdmin/horizon-api/utils"

	"github.com/appwrite/sdk-for-go/appwrite"
	"github.com/appwrite/sdk-for-go/client"
	"github.com/appwrite/sdk-for-go/query"
)

// defaultPageSize is how many documents one ListDocuments page asks for.
// The server returns 25 when no limit is given.
const defaultPageSize = 100

// AppwriteGateway talks to Appwrite through its Go SDK. Admin calls
// authenticate with the server API key; session calls with the caller's
// session secret.
//
// The SDK takes no context, so a cancelled context only stops calls that
// have not started yet.
type AppwriteGateway struct {
	Endpoint   string
	ProjectID  string
	APIKey     string
	DatabaseID string

	pageSize int
}

var _ IdentityGateway = (*AppwriteGateway)(nil)

func NewAppwriteGateway(cfg config.IdentityConfig) *AppwriteGateway {
	return &AppwriteGateway{
		Endpoint:   cfg.Endpoint,
		ProjectID:  cfg.ProjectID,
		APIKey:     cfg.APIKey,
		DatabaseID: cfg.DatabaseID,
		pageSize:   defaultPageSize,
	}
}

func (g *AppwriteGateway) adminClient() client.Client {
	return appwrite.NewClient(
		appwrite.WithEndpoint(g.Endpoint),
		appwrite.WithProject(g.ProjectID),
		appwrite.WithKey(g.APIKey),
	)
}

func (g *AppwriteGateway) sessionClient(op, secret string) (client.Client, error) {
	if secret == "" {
		return client.Client{}, apperr.New(apperr.NotFound, op, "no session")
	}
	return appwrite.NewClient(
		appwrite.WithEndpoint(g.Endpoint),
		appwrite.WithProject(g.ProjectID),
		appwrite.WithSession(secret),
	), nil
}

// appwriteError gives an SDK error its apperr kind. Errors without a status
// code never reached the server.
func appwriteError(op string, err error) error {
	var statusErr interface{ GetStatusCode() int }
	if errors.As(err, &statusErr) && statusErr.GetStatusCode() > 0 {
		status := statusErr.GetStatusCode()
		return apperr.WithStatus(apperr.FromHTTPStatus(status), op, status,
			fmt.Errorf("appwrite responded %d: %w", status, err))
	}
	return apperr.Wrap(apperr.UpstreamUnavailable, op, err)
}

func started(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, op, err)
	}
	return nil
}

// ========== ACCOUNT ==========

func (g *AppwriteGateway) CreateAccount(ctx context.Context, email, password, name string) (*models.Identity, error) {
	const op = "appwrite.createAccount"
	if err := started(ctx, op); err != nil {
		return nil, err
	}

	accounts := appwrite.NewAccount(g.adminClient())
	user, err := accounts.Create(uniqueID(), email, password, accounts.WithCreateName(name))
	if err != nil {
		return nil, appwriteError(op, err)
	}
	if user.Id == "" {
		return nil, apperr.New(apperr.UpstreamRejected, op, "response carried no account id")
	}
	return &models.Identity{ID: user.Id, Email: user.Email, Name: user.Name}, nil
}

func (g *AppwriteGateway) CreateSession(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "appwrite.createSession"
	if err := started(ctx, op); err != nil {
		return nil, err
	}

	session, err := appwrite.NewAccount(g.adminClient()).CreateEmailPasswordSession(email, password)
	if err != nil {
		return nil, appwriteError(op, err)
	}
	if session.Secret == "" {
		return nil, apperr.New(apperr.UpstreamRejected, op, "session secret missing, is APPWRITE_KEY a server key?")
	}
	return &models.Session{
		ID:         session.Id,
		IdentityID: session.UserId,
		Secret:     session.Secret,
		Expire:     session.Expire,
	}, nil
}

func (g *AppwriteGateway) GetAccount(ctx context.Context, sessionSecret string) (*models.Identity, error) {
	const op = "appwrite.getAccount"
	clt, err := g.sessionClient(op, sessionSecret)
	if err != nil {
		return nil, err
	}
	if err := started(ctx, op); err != nil {
		return nil, err
	}

	user, err := appwrite.NewAccount(clt).Get()
	if err != nil {
		err = appwriteError(op, err)
		// An unknown or deleted session is reported as 401 by the backend.
		if apperr.StatusOf(err) == http.StatusUnauthorized {
			return nil, apperr.WithStatus(apperr.NotFound, op, http.StatusUnauthorized, errors.Unwrap(err))
		}
		return nil, err
	}
	return &models.Identity{ID: user.Id, Email: user.Email, Name: user.Name}, nil
}

func (g *AppwriteGateway) DeleteSession(ctx context.Context, sessionSecret string) error {
	const op = "appwrite.deleteSession"
	clt, err := g.sessionClient(op, sessionSecret)
	if err != nil {
		return err
	}
	if err := started(ctx, op); err != nil {
		return err
	}

	if _, err := appwrite.NewAccount(clt).DeleteSession("current"); err != nil {
		return appwriteError(op, err)
	}
	return nil
}

// ========== DATABASES ==========

func (g *AppwriteGateway) CreateDocument(ctx context.Context, collectionID string, data any) (string, error) {
	const op = "appwrite.createDocument"
	if err := started(ctx, op); err != nil {
		return "", err
	}

	doc, err := appwrite.NewDatabases(g.adminClient()).CreateDocument(g.DatabaseID, collectionID, uniqueID(), data)
	if err != nil {
		return "", appwriteError(op, err)
	}
	return doc.Id, nil
}

// ListDocuments pages through every match, so callers never see a truncated
// list.
func (g *AppwriteGateway) ListDocuments(ctx context.Context, collectionID, attribute, value string, out any) error {
	const op = "appwrite.listDocuments"

	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%s: out must be a pointer to a slice, got %T", op, out)
	}
	all := reflect.MakeSlice(target.Elem().Type(), 0, 0)

	dbs := appwrite.NewDatabases(g.adminClient())
	for offset := 0; ; {
		if err := started(ctx, op); err != nil {
			return err
		}

		list, err := dbs.ListDocuments(g.DatabaseID, collectionID, dbs.WithListDocumentsQueries([]string{
			query.Equal(attribute, value),
			query.Limit(g.pageSize),
			query.Offset(offset),
		}))
		if err != nil {
			return appwriteError(op, err)
		}

		var page struct {
			Documents json.RawMessage `json:"documents"`
		}
		if err := list.Decode(&page); err != nil {
			return apperr.Wrap(apperr.UpstreamUnavailable, op, fmt.Errorf("decode documents: %w", err))
		}
		batch := reflect.New(target.Elem().Type())
		if len(page.Documents) > 0 {
			if err := json.Unmarshal(page.Documents, batch.Interface()); err != nil {
				return apperr.Wrap(apperr.UpstreamUnavailable, op, fmt.Errorf("decode documents: %w", err))
			}
		}
		n := batch.Elem().Len()
		all = reflect.AppendSlice(all, batch.Elem())
		offset += n

		if n < g.pageSize || offset >= list.Total {
			break
		}
		utils.SafeDebug("📄 %s.%s: fetched %d of %d documents", g.DatabaseID, collectionID, offset, list.Total)
	}

	target.Elem().Set(all)
	return nil
}
