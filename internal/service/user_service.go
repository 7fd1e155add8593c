package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"user-sync/internal/auth0"
	"user-sync/internal/domain"
	"user-sync/internal/repository"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrNotOwner        = errors.New("you are not allowed to update this user")
	ErrInvalidIdentity = errors.New("invalid auth0 identity")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidName     = errors.New("invalid name")
	ErrUserConflict    = errors.New("user conflicts with an existing record")
)

// UserService reconcilia usuarios locales con las identidades de Auth0.
type UserService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	gateway  auth0.Gateway
	nameSync domain.NameSyncPolicy
	now      func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, gateway auth0.Gateway, nameSync domain.NameSyncPolicy) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:   logger,
		users:    users,
		gateway:  gateway,
		nameSync: nameSync,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrUpdateFromAuth0 busca el usuario por auth0_id o email y fusiona los atributos,
// o lo crea si no existe.
func (s *UserService) CreateOrUpdateFromAuth0(ctx context.Context, auth0ID string, attrs domain.SyncAttributes, email string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	auth0ID = strings.TrimSpace(auth0ID)
	if auth0ID == "" {
		return domain.User{}, ErrInvalidIdentity
	}
	email = normalizeEmail(email)

	existing, err := s.users.FindByAuth0IDOrEmail(ctx, auth0ID, email)
	if err == nil {
		return s.mergeUser(ctx, existing, attrs, email)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, err
	}

	if email == "" {
		return domain.User{}, ErrInvalidEmail
	}
	now := s.now()
	user := domain.User{
		ID:            uuid.NewString(),
		Auth0ID:       auth0ID,
		Email:         email,
		Name:          resolveName(attrs.Name, email),
		Avatar:        nonEmpty(attrs.Picture),
		EmailVerified: attrs.EmailVerified,
		LastLoginAt:   attrs.LastLoginAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := s.users.Create(ctx, user)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return domain.User{}, err
	}

	// Otra peticion inserto la misma identidad entre la busqueda y el insert.
	s.logger.Info("user insert conflict, merging", zap.String("auth0_id", auth0ID))
	existing, err = s.users.FindByAuth0IDOrEmail(ctx, auth0ID, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUserConflict
		}
		return domain.User{}, err
	}
	return s.mergeUser(ctx, existing, attrs, email)
}

func (s *UserService) mergeUser(ctx context.Context, user domain.User, attrs domain.SyncAttributes, email string) (domain.User, error) {
	if name := resolveName(attrs.Name, email); name != nil {
		user.Name = name
	}
	user.EmailVerified = attrs.EmailVerified
	if picture := nonEmpty(attrs.Picture); picture != nil {
		user.Avatar = picture
	}
	if attrs.LastLoginAt != nil {
		user.LastLoginAt = attrs.LastLoginAt
	}
	if email != "" {
		user.Email = email
	}
	user.UpdatedAt = s.now()

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, ErrUserConflict
		}
		return domain.User{}, err
	}
	return updated, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return user, nil
}

func (s *UserService) GetByAuth0ID(ctx context.Context, auth0ID string) (domain.User, error) {
	user, err := s.users.GetByAuth0ID(ctx, strings.TrimSpace(auth0ID))
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return user, nil
}

// EnsureOwner verifica que el registro local pertenezca al sujeto del token.
func (s *UserService) EnsureOwner(ctx context.Context, id, subject string) (domain.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.User{}, ErrNotOwner
		}
		return domain.User{}, err
	}
	if subject == "" || user.Auth0ID != subject {
		return domain.User{}, ErrNotOwner
	}
	return user, nil
}

// UpdateName renombra al usuario en Auth0 y localmente.
func (s *UserService) UpdateName(ctx context.Context, id, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, ErrInvalidName
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if s.gateway != nil {
		if _, err := s.gateway.UpdateUser(ctx, user.Auth0ID, domain.Auth0UserUpdate{Name: name}); err != nil {
			if s.nameSync == domain.NameSyncFailFast {
				return domain.User{}, err
			}
			s.logger.Warn("auth0 name sync failed, updating locally",
				zap.String("user_id", user.ID),
				zap.String("auth0_id", user.Auth0ID),
				zap.Error(err),
			)
		}
	}

	updated, err := s.users.UpdateName(ctx, user.ID, name, s.now())
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return updated, nil
}

// UpdatePassword delega el cambio de contraseña en Auth0; no hay escritura local.
func (s *UserService) UpdatePassword(ctx context.Context, id, password string) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.gateway == nil {
		return errors.New("auth0 gateway not configured")
	}
	_, err = s.gateway.UpdateUser(ctx, user.Auth0ID, domain.Auth0UserUpdate{Password: password})
	return err
}

func (s *UserService) UpdateLastLogin(ctx context.Context, auth0ID string, at time.Time) (domain.User, error) {
	user, err := s.users.UpdateLastLogin(ctx, strings.TrimSpace(auth0ID), at.UTC(), s.now())
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return user, nil
}

// TouchSession registra actividad de sesion del usuario.
func (s *UserService) TouchSession(ctx context.Context, auth0ID string, at time.Time) error {
	if err := s.users.UpdateLastSessionActive(ctx, auth0ID, at.UTC()); err != nil {
		return notFound(err)
	}
	return nil
}

// SyncProfile trae el perfil de Auth0 y lo reconcilia con el registro local.
func (s *UserService) SyncProfile(ctx context.Context, auth0ID string) (domain.User, error) {
	if s.gateway == nil {
		return domain.User{}, errors.New("auth0 gateway not configured")
	}
	profile, err := s.gateway.GetUser(ctx, auth0ID)
	if err != nil {
		return domain.User{}, err
	}
	return s.CreateOrUpdateFromAuth0(ctx, profile.UserID, domain.SyncAttributes{
		Name:          nonEmpty(&profile.Name),
		EmailVerified: profile.EmailVerified,
		Picture:       nonEmpty(&profile.Picture),
	}, profile.Email)
}

func resolveName(name *string, email string) *string {
	if n := nonEmpty(name); n != nil {
		return n
	}
	if email == "" {
		return nil
	}
	return &email
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
