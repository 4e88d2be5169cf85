package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// ユーザーID・ロール等の情報を認証基盤と通知サービス間で共有するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーのロール（admin / nurse / patient）。
	Role string `json:"role"`
	// Name はユーザーの表示名。
	Name string `json:"name"`
}

// ロール定数。ロールルームへの振り分けと管理者APIの認可に使用する。
const (
	// RoleAdmin は管理者ロール。
	RoleAdmin = "admin"
	// RoleNurse は看護師ロール。
	RoleNurse = "nurse"
	// RolePatient は患者ロール。
	RolePatient = "patient"
)

// headerKeyUserID はサービス間でユーザーIDを伝播するためのHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// 認証基盤が発行するトークンと同じ形式。テストとnotifyctlでも使用する。
func GenerateJWT(secret, userID, email, role, name string) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "carebridge-auth",
		},
		UserID: userID,
		Email:  email,
		Role:   role,
		Name:   name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// VerifyJWT はJWTトークンを検証し、クレームを返す。
// WebSocketハンドシェイク時など、Ginミドルウェアを経由しない認証で使用する。
func VerifyJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("JWTトークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("JWTトークンが無効")
	}
	return claims, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id"・"email"・"role"・"name" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims, err := VerifyJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Set("name", claims.Name)
		c.Header(headerKeyUserID, claims.UserID)
		c.Next()
	}
}

// RequireRole は指定されたロールのユーザーのみ許可するGinミドルウェアを返す。
// JWTAuthミドルウェアが事前に適用されている必要がある。
// 管理者向けAPI（統計・クリーンアップ・アナウンス）の認可に使用する。
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "この操作を行う権限がありません",
			})
			return
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return getStringValue(c, "user_id")
}

// GetUserRole はGinコンテキストからユーザーのロールを取得する。
func GetUserRole(c *gin.Context) string {
	return getStringValue(c, "role")
}

// GetUserName はGinコンテキストからユーザーの表示名を取得する。
func GetUserName(c *gin.Context) string {
	return getStringValue(c, "name")
}

// getStringValue はGinコンテキストから文字列の値を取得する。
func getStringValue(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
