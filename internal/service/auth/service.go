package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Renzios/sharerapy-harness/internal/datasource"
	"github.com/Renzios/sharerapy-harness/internal/engine"
	"github.com/Renzios/sharerapy-harness/internal/model"
	"github.com/Renzios/sharerapy-harness/internal/query"
	"github.com/Renzios/sharerapy-harness/internal/session"
	"github.com/Renzios/sharerapy-harness/pkg/errors"
	"github.com/Renzios/sharerapy-harness/pkg/logger"
	"github.com/Renzios/sharerapy-harness/pkg/messaging"
	"github.com/Renzios/sharerapy-harness/pkg/metrics"
	"github.com/Renzios/sharerapy-harness/pkg/validator"
)

const entity = "user"

type AuthService interface {
	Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error)
	SignOut(ctx context.Context, token string) bool
	Resolve(token string) (string, bool)
}

// Service is the auth test double. Users and sessions always live locally;
// the backend is asked first when one is configured.
type Service struct {
	source    datasource.Source
	mock      bool
	sessions  *session.Store
	users     *session.Users
	ledger    *engine.Ledger
	validator *validator.Validator
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(source datasource.Source, sessions *session.Store, users *session.Users, opts engine.Options) *Service {
	if source == nil {
		source = datasource.Unavailable()
	}
	if opts.Ledger == nil {
		opts.Ledger = engine.NewLedger()
	}
	if opts.Validator == nil {
		opts.Validator = validator.New()
	}
	if opts.Publisher == nil {
		opts.Publisher = messaging.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		source:    source,
		mock:      opts.Mock,
		sessions:  sessions,
		users:     users,
		ledger:    opts.Ledger,
		validator: opts.Validator,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    logger.Component(opts.Logger, "auth"),
		now:       opts.Now,
	}
}

// Signup registers a user and returns it without the password. An e-mail
// already registered in this run is a conflict.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	if req == nil {
		return nil, errors.Validation(map[string]string{"email": "required", "password": "required"})
	}
	in := *req
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Validate(&in); err != nil {
		return nil, err
	}
	if s.users.Exists(in.Email) {
		return nil, errors.Conflict(session.ErrUserExists.Error())
	}

	user := model.User{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		CreatedAt: model.NewTimestamp(s.now()),
	}
	if !s.mock {
		s.remoteSignup(ctx, &in, &user)
	} else {
		s.metrics.Fallback(entity, string(query.ActionSignup))
	}
	if user.ID == "" {
		user.ID = s.ledger.Issue(engine.VerdictCreated)
	}

	registered, err := s.users.Register(user, in.Password)
	switch {
	case stderrors.Is(err, session.ErrUserExists):
		return nil, errors.Conflict(err.Error())
	case err != nil:
		return nil, errors.Validation(map[string]string{"password": "invalid"})
	}

	if err := s.publisher.Publish(ctx, entity+".created", registered); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish signup event")
	}
	return &registered, nil
}

// remoteSignup adopts the backend's id and timestamps when the backend
// accepts the signup.
func (s *Service) remoteSignup(ctx context.Context, in *model.SignupRequest, user *model.User) {
	raw, err := s.source.Execute(ctx, &query.Descriptor{
		Entity: entity,
		Action: query.ActionSignup,
		Payload: map[string]interface{}{
			"email":      in.Email,
			"password":   in.Password,
			"first_name": in.FirstName,
			"last_name":  in.LastName,
		},
	})
	if err == nil {
		var remote model.User
		if err = json.Unmarshal(raw, &remote); err == nil {
			if remote.ID != "" {
				user.ID = remote.ID
				if remote.CreatedAt != nil {
					user.CreatedAt = remote.CreatedAt
				}
				s.ledger.Mark(remote.ID, engine.VerdictCreated)
				return
			}
			err = fmt.Errorf("%w: signup response without id", datasource.ErrMalformed)
		}
	}

	s.metrics.Fallback(entity, string(query.ActionSignup))
	s.logger.Warn().Err(err).Str("email", in.Email).Msg("remote signup failed, registering locally")
}

// Login returns a new session, or nil when the credentials are missing or
// wrong.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	if req == nil {
		return nil, nil
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, nil
	}

	if !s.mock {
		if subject, ok := s.remoteLogin(ctx, email, req.Password); ok {
			return s.open(subject), nil
		}
	}

	if _, ok := s.users.Authenticate(email, req.Password); !ok {
		return nil, nil
	}
	return s.open(email), nil
}

func (s *Service) remoteLogin(ctx context.Context, email, password string) (string, bool) {
	raw, err := s.source.Execute(ctx, &query.Descriptor{
		Entity:  entity,
		Action:  query.ActionLogin,
		Payload: map[string]interface{}{"email": email, "password": password},
	})
	if err != nil {
		s.metrics.Fallback(entity, string(query.ActionLogin))
		s.logger.Warn().Err(err).Msg("remote login failed, checking local users")
		return "", false
	}
	if datasource.IsNull(raw) {
		return "", false
	}

	var remote struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &remote); err != nil {
		s.logger.Warn().Err(err).Msg("malformed remote login response")
		return "", false
	}
	if remote.Email == "" {
		remote.Email = email
	}
	return remote.Email, true
}

func (s *Service) open(email string) *model.LoginResponse {
	sess, err := s.sessions.Create(email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		return nil
	}
	return &model.LoginResponse{Token: sess.Token, Email: sess.Subject}
}

// SignOut reports whether a session was removed.
func (s *Service) SignOut(_ context.Context, token string) bool {
	return s.sessions.Invalidate(token)
}

func (s *Service) Resolve(token string) (string, bool) {
	return s.sessions.Resolve(token)
}
