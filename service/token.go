package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	uuid "github.com/google/uuid"
)

var errInvalidToken = &UnauthorizedError{Message: "Invalid authorization, please login again"}

// TokenDetails ...
type TokenDetails struct {
	AccessToken string
	AccessUUID  string
	AtExpires   int64
}

// AccessDetails ...
type AccessDetails struct {
	AccessUUID string
	UserID     uint
	Email      string
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// CreateToken ...
func (t *TokenService) CreateToken(userID uint, email string) (*TokenDetails, error) {
	td := &TokenDetails{}
	td.AtExpires = time.Now().Add(t.ttl).Unix()
	td.AccessUUID = uuid.New().String()

	var err error
	//Creating Access Token
	atClaims := jwt.MapClaims{}
	atClaims["authorized"] = true
	atClaims["access_uuid"] = td.AccessUUID
	atClaims["user_id"] = userID
	atClaims["email"] = email
	atClaims["exp"] = td.AtExpires

	at := jwt.NewWithClaims(jwt.SigningMethodHS256, atClaims)
	td.AccessToken, err = at.SignedString(t.secret)
	if err != nil {
		return nil, err
	}
	return td, nil
}

// ExtractToken ...
func (t *TokenService) ExtractToken(r *http.Request) string {
	bearToken := r.Header.Get("Authorization")
	//normally Authorization the_token_xxx
	strArr := strings.Split(bearToken, " ")
	if len(strArr) == 2 {
		return strArr[1]
	}
	return ""
}

// VerifyToken ...
func (t *TokenService) VerifyToken(tokenString string) (*jwt.Token, error) {
	if tokenString == "" {
		return nil, errors.New("missing token")
	}
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		//Make sure that the token method conform to "SigningMethodHMAC"
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
}

// ExtractTokenMetadata ...
func (t *TokenService) ExtractTokenMetadata(r *http.Request) (*AccessDetails, error) {
	return t.Metadata(t.ExtractToken(r))
}

// Metadata verifies tokenString and returns its claims.
func (t *TokenService) Metadata(tokenString string) (*AccessDetails, error) {
	token, err := t.VerifyToken(tokenString)
	if err != nil {
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errInvalidToken
	}
	accessUUID, ok := claims["access_uuid"].(string)
	if !ok {
		return nil, errInvalidToken
	}
	// numeric claims decode as float64
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, errInvalidToken
	}
	email, _ := claims["email"].(string)
	return &AccessDetails{
		AccessUUID: accessUUID,
		UserID:     uint(userID),
		Email:      email,
	}, nil
}

// Refresh issues a fresh token for a still valid one.
func (t *TokenService) Refresh(tokenString string) (*TokenDetails, error) {
	details, err := t.Metadata(tokenString)
	if err != nil {
		return nil, err
	}
	return t.CreateToken(details.UserID, details.Email)
}
