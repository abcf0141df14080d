package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"gorm.io/gorm"
)

// User is the auth identity. Organization membership and roles live on
// Profile; one user can belong to several organizations.
type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email" binding:"required"`
	Name         string    `gorm:"size:100;not null" json:"name" binding:"required"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type SignupInput struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type SigninInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthPayload struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func Signup(ctx context.Context, input *SignupInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !utils.IsValidEmail(email) {
		return nil, errors.New("invalid email")
	}

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&User{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("email already registered")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Email:        email,
		Name:         input.Name,
		PasswordHash: string(hashed),
		IsActive:     utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Signin verifies credentials, issues a JWT and registers a redis session so
// tokens can be revoked server-side on signout.
func Signin(ctx context.Context, input *SigninInput) (*AuthPayload, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, errors.New("account is deactivated")
	}

	if err := utils.ComparePassword(user.PasswordHash, input.Password); err != nil {
		return nil, errors.New("invalid email or password")
	}

	// user-level role lives on the profile; the JWT carries only identity
	token, err := utils.JwtGenerate(user.ID, "user")
	if err != nil {
		return nil, err
	}

	if err := config.SetRedisValue("Token:"+token, user.Email, sessionLifespan()); err != nil {
		return nil, err
	}

	return &AuthPayload{Token: token, User: &user}, nil
}

func Signout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return errors.New("no active session")
	}
	return config.RemoveRedisKey("Token:" + token)
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchSingleModel[User](ctx, id)
}

func sessionLifespan() time.Duration {
	return utils.GetCacheLifespan() * 24
}
