package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"relaychat/model"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 7
	maxPasswordLen = 72 // bcrypt rejects longer input
	bcryptCost     = 12
)

var validate = validator.New()

type userStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByID(ctx context.Context, id uint) (*model.User, error)
}

type UserService struct {
	store  userStore
	tokens *TokenService
}

func NewUserService(store userStore, tokens *TokenService) *UserService {
	return &UserService{store: store, tokens: tokens}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (service *UserService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !isValidEmail(email) {
		return nil, &InvalidRequestError{Message: "A valid email is required"}
	}
	if !isValidPassword(password) {
		return nil, &InvalidRequestError{Message: "Password must be between 7 and 72 characters"}
	}

	// 唯一性检查
	if _, err := service.store.FindUserByEmail(ctx, email); err == nil {
		return nil, &ConflictError{Message: "User already exists"}
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, &PersistenceError{Op: "check user", Err: err}
	}

	// 密码加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:    email,
		Password: string(hashedPassword),
		Name:     strings.TrimSpace(name),
	}
	if err := service.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, &ConflictError{Message: "User already exists"}
		}
		return nil, &PersistenceError{Op: "create user", Err: err}
	}
	return service.issue(user)
}

func (service *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := service.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, &UnauthorizedError{Message: "Invalid credentials"}
		}
		return nil, &PersistenceError{Op: "load user", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, &UnauthorizedError{Message: "Invalid credentials"}
	}
	return service.issue(user)
}

func (service *UserService) Me(ctx context.Context, userID uint) (*model.User, error) {
	user, err := service.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, &PersistenceError{Op: "load user", Err: err}
	}
	return user, nil
}

func (service *UserService) issue(user *model.User) (*AuthResult, error) {
	td, err := service.tokens.CreateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: td.AccessToken, User: user}, nil
}

func isValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func isValidPassword(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= minPasswordLen && len(password) <= maxPasswordLen
}
