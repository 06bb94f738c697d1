// Package auth performs the login, registration, logout and session-probe
// calls. It keeps no state of its own; the session package owns identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"quicknote/internal/api"
	"quicknote/internal/domain"
)

// Backend error codes carried in the detail field.
const (
	CodeBadCredentials  = "LOGIN_BAD_CREDENTIALS"
	CodeUserExists      = "REGISTER_USER_ALREADY_EXISTS"
	CodeInvalidPassword = "REGISTER_INVALID_PASSWORD"
)

const (
	msgMissingLogin    = "Please enter both email and password."
	msgLoginFailed     = "Login failed. Please check your credentials."
	msgBadCredentials  = "Invalid email or password."
	msgMissingFields   = "Please fill in all fields."
	msgPasswordMatch   = "Passwords do not match."
	msgInvalidEmail    = "Please enter a valid email address."
	msgRegisterFailed  = "Registration failed. Please try again."
	msgUserExists      = "An account with this email already exists."
	msgInvalidInput    = "Invalid input provided."
	msgUnreachable     = "Could not connect to the server. Please try again later."
	msgServerError     = "The server encountered an error. Please try again later."
	msgSessionRejected = "Session check failed."
)

// Transport is the subset of api.Client used for authentication.
type Transport interface {
	Login(ctx context.Context, username, password string) (*api.Response, error)
	Register(ctx context.Context, email, password string) (*api.Response, error)
	Session(ctx context.Context) (*api.Response, error)
	Logout(ctx context.Context) (*api.Response, error)
}

// Gateway maps auth responses onto classified domain errors.
type Gateway struct {
	transport Transport
	validate  *validator.Validate
	log       logger.Logger
}

// NewGateway creates a gateway over transport.
func NewGateway(transport Transport, log logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Gateway{
		transport: transport,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       log,
	}
}

// Login submits credentials. The returned identity is nil when the response
// carries none; callers refresh the session afterwards either way.
func (g *Gateway) Login(ctx context.Context, creds domain.Credentials) (*domain.UserIdentity, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := g.validate.Struct(creds); err != nil {
		return nil, domain.NewError(domain.KindInputValidation, msgMissingLogin)
	}

	resp, err := g.transport.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, unreachable(err)
	}
	if resp.OK() {
		identity, err := api.DecodeIdentity(resp.Body)
		if err != nil {
			return nil, nil
		}
		return &identity, nil
	}

	switch {
	case resp.Status == http.StatusBadRequest || resp.Status == http.StatusUnprocessableEntity:
		message := msgLoginFailed
		if api.ErrorCode(resp.Body) == CodeBadCredentials {
			message = msgBadCredentials
		} else if detail := api.ErrorDetail(resp.Body); detail != "" {
			message = detail
		}
		return nil, &domain.Error{Kind: domain.KindInvalidCredentials, Message: message, Status: resp.Status}
	case resp.Status >= 500:
		g.log.Warning(fmt.Sprintf("auth: login failed with status %d", resp.Status))
		return nil, &domain.Error{Kind: domain.KindServerBusy, Message: msgServerError, Status: resp.Status}
	default:
		return nil, &domain.Error{Kind: domain.KindUnknown, Message: msgLoginFailed, Status: resp.Status}
	}
}

// Register creates an account. It is never retried.
func (g *Gateway) Register(ctx context.Context, reg domain.Registration) error {
	reg.Email = strings.TrimSpace(reg.Email)
	if err := g.checkRegistration(reg); err != nil {
		return err
	}

	resp, err := g.transport.Register(ctx, reg.Email, reg.Password)
	if err != nil {
		return unreachable(err)
	}
	if resp.OK() {
		return nil
	}

	switch resp.Status {
	case http.StatusBadRequest:
		code := api.ErrorCode(resp.Body)
		detail := api.ErrorDetail(resp.Body)
		switch {
		case strings.Contains(code, CodeUserExists):
			return &domain.Error{Kind: domain.KindAlreadyExists, Message: msgUserExists, Status: resp.Status}
		case code == CodeInvalidPassword:
			if detail == "" || detail == code {
				detail = "Invalid password."
			}
			return &domain.Error{Kind: domain.KindValidation, Message: detail, Status: resp.Status, Fields: map[string]string{"password": detail}}
		case detail != "":
			return &domain.Error{Kind: domain.KindUnknown, Message: detail, Status: resp.Status}
		}
		return &domain.Error{Kind: domain.KindUnknown, Message: msgRegisterFailed, Status: resp.Status}
	case http.StatusUnprocessableEntity:
		message := api.ErrorDetail(resp.Body)
		if message == "" {
			message = msgInvalidInput
		}
		return &domain.Error{Kind: domain.KindValidation, Message: message, Status: resp.Status, Fields: api.FieldErrors(resp.Body)}
	default:
		return &domain.Error{Kind: domain.KindUnknown, Message: msgRegisterFailed, Status: resp.Status}
	}
}

// checkRegistration runs the client-side checks that precede any network call.
func (g *Gateway) checkRegistration(reg domain.Registration) error {
	err := g.validate.Struct(reg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewError(domain.KindInputValidation, msgMissingFields)
	}

	out := &domain.Error{Kind: domain.KindInputValidation, Fields: map[string]string{}}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			out.Message = msgMissingFields
			out.Fields[fieldName(fe.Field())] = "This field is required."
		case "email":
			out.Fields["email"] = msgInvalidEmail
		case "eqfield":
			out.Fields["confirm_password"] = msgPasswordMatch
		}
	}
	if out.Message == "" {
		switch {
		case out.Fields["email"] != "":
			out.Message = msgInvalidEmail
		case out.Fields["confirm_password"] != "":
			out.Message = msgPasswordMatch
		default:
			out.Message = msgInvalidInput
		}
	}
	return out
}

// Session probes the server session and returns its identity.
func (g *Gateway) Session(ctx context.Context) (*domain.UserIdentity, error) {
	resp, err := g.transport.Session(ctx)
	if err != nil {
		return nil, unreachable(err)
	}
	if resp.Status == http.StatusUnauthorized {
		return nil, &domain.Error{Kind: domain.KindAuthRequired, Message: msgSessionRejected, Status: resp.Status}
	}
	if !resp.OK() {
		return nil, &domain.Error{Kind: domain.KindUnknown, Message: msgSessionRejected, Status: resp.Status}
	}

	identity, err := api.DecodeIdentity(resp.Body)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindInvalidPayload, Message: msgSessionRejected, Status: resp.Status, Err: err}
	}
	return &identity, nil
}

// Logout notifies the backend that the session ended.
func (g *Gateway) Logout(ctx context.Context) error {
	resp, err := g.transport.Logout(ctx)
	if err != nil {
		return unreachable(err)
	}
	if !resp.OK() {
		return &domain.Error{Kind: domain.KindUnknown, Message: fmt.Sprintf("logout returned status %d", resp.Status), Status: resp.Status}
	}
	return nil
}

func unreachable(err error) error {
	return &domain.Error{Kind: domain.KindUnreachable, Message: msgUnreachable, Err: err}
}

func fieldName(structField string) string {
	switch structField {
	case "ConfirmPassword":
		return "confirm_password"
	default:
		return strings.ToLower(structField)
	}
}
