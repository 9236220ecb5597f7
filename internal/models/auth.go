package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates caller roles carried in access tokens. Identity
// storage lives in the surrounding platform; this service only consumes
// the claims.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleMember UserRole = "MEMBER"
	RoleSystem UserRole = "SYSTEM"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
