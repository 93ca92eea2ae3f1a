package users

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/security"
)

const tempPasswordLength = 12

// RegisterInput describes a new terminal operator.
type RegisterInput struct {
	Email    string
	FullName string
	Role     enums.UserRole
	Password string
	ImageURL *string
}

// RegisterResult carries the created operator. TempPassword is set only when
// the caller left Password empty and one was generated.
type RegisterResult struct {
	User         *UserDTO `json:"user"`
	TempPassword string   `json:"tempPassword,omitempty"`
}

// Service manages operator accounts.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, error)
	List(ctx context.Context) ([]UserDTO, error)
}

type service struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
}

// NewService builds the operator account service.
func NewService(dbClient *db.Client, passwordCfg config.PasswordConfig) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("database client required")
	}
	return &service{db: dbClient, passwordCfg: passwordCfg}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fullName is required")
	}
	role := input.Role
	if role == "" {
		role = enums.UserRoleCashier
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be one of admin, manager, cashier")
	}

	password := input.Password
	generated := ""
	if password == "" {
		temp, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password, generated = temp, temp
	}

	passwordHash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)

		taken, err := repo.EmailTaken(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}

		user, err := repo.Create(ctx, CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FullName:     fullName,
			Role:         role,
			ImageURL:     input.ImageURL,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		created = FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: created, TempPassword: generated}, nil
}

func (s *service) List(ctx context.Context) ([]UserDTO, error) {
	rows, err := NewRepository(s.db.DB()).List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}
