package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/online_store/internal/hash"
	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/models"
	"github.com/Skotchmaster/online_store/internal/repo"
	"github.com/Skotchmaster/online_store/internal/tokens"
	"github.com/Skotchmaster/online_store/internal/transport"
)

type UserService struct {
	Repo   *repo.GormRepo
	Tokens *tokens.Service
	Events EventPublisher
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email must be in mail format", ErrValidation)
	}
	return email, nil
}

func (s *UserService) Register(ctx context.Context, req transport.RegisterRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "user.register")

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	role := models.RoleCustomer
	if req.Role != "" {
		if role, err = models.ParseRole(req.Role); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	if _, err := s.Repo.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: User already exists", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	digest, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Email: email, PasswordHash: digest, Role: role}
	if req.AwsImageURL != "" {
		image := req.AwsImageURL
		user.UserImage = &image
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: User already exists", ErrConflict)
		}
		return nil, err
	}

	l.Info("user_registered", "user_id", user.ID, "role", user.Role)
	publish(ctx, s.Events, TopicUsers, strconv.FormatUint(uint64(user.ID), 10), "user_registered", map[string]any{
		"userID": user.ID,
		"email":  user.Email,
		"role":   user.Role,
	})
	return user, nil
}

// Login checks the credentials and issues an access token. Unknown email and
// wrong password both yield ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, req transport.LoginRequest) (string, *models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return "", nil, ErrInvalidCredentials
	}

	token, _, err := s.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *UserService) GetMe(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser changes email and image. Customers may only update themselves;
// admins may update anyone.
func (s *UserService) UpdateUser(ctx context.Context, callerID uint, callerRole models.Role, targetID uint, req transport.UpdateUserRequest) (*models.User, error) {
	if callerRole != models.RoleAdmin && callerID != targetID {
		return nil, fmt.Errorf("%w: cannot update another user", ErrForbidden)
	}

	var email *string
	if req.Email != nil {
		normalized, err := normalizeEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		taken, err := s.Repo.EmailTaken(ctx, normalized, targetID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: email already in use", ErrConflict)
		}
		email = &normalized
	}

	user, err := s.Repo.UpdateUser(ctx, targetID, email, req.AwsImageURL)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, targetID)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: email already in use", ErrConflict)
		}
		return nil, err
	}

	publish(ctx, s.Events, TopicUsers, strconv.FormatUint(uint64(user.ID), 10), "user_updated", map[string]any{
		"userID": user.ID,
		"email":  user.Email,
	})
	return user, nil
}
