package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the JWT payload issued at login. It embeds jwt.RegisteredClaims
// for the standard fields (exp, iat) and carries the user identity the API
// layer authorizes on.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
