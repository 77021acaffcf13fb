package middleware

import (
	"academyhub/config"
	"academyhub/database"
	"academyhub/models"
	"academyhub/utils"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Claims carry the tenant scope into every request.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	AcademyID string `json:"academy_id,omitempty"`
	jwt.RegisteredClaims
}

// BlacklistKey is the Redis key marking a revoked token id.
func BlacklistKey(jti string) string { return "blacklist:jwt:" + jti }

// GenerateToken creates a new JWT token for a user
func GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.JWTExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if user.AcademyID != nil {
		claims.AcademyID = *user.AcademyID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ParseToken validates the signature and expiry of a token string.
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if !utils.IsValidRole(claims.Role) {
		return nil, errors.New("unknown role in token")
	}
	return claims, nil
}

// IsRevoked checks the Redis blacklist. Without Redis no token is revoked.
func IsRevoked(ctx context.Context, claims *Claims) bool {
	rc := database.GetRedisClient()
	if rc == nil || claims.ID == "" {
		return false
	}
	n, err := rc.Exists(ctx, BlacklistKey(claims.ID)).Result()
	return err == nil && n > 0
}

// JWTMiddleware validates JWT tokens
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}
		if IsRevoked(c.UserContext(), claims) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token has been revoked",
			})
		}

		// Verify user still exists and is active
		var user models.User
		if err := database.DB.WithContext(c.UserContext()).
			Where("id = ? AND status = ?", claims.UserID, "active").First(&user).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found or inactive",
			})
		}

		c.Locals("user", &user)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequireRole middleware checks if user has required role
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*Claims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing user claims",
			})
		}

		if claims.Role == models.RoleSuperAdmin {
			return c.Next()
		}
		for _, role := range roles {
			if claims.Role == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Insufficient permissions",
		})
	}
}

// RequireOwnerOrAdmin middleware allows only owner or admin
func RequireOwnerOrAdmin() fiber.Handler {
	return RequireRole(models.RoleOwner, models.RoleAdmin)
}

// RequireStaff allows teacher, admin or owner
func RequireStaff() fiber.Handler {
	return RequireRole(models.RoleTeacher, models.RoleAdmin, models.RoleOwner)
}

// RequireSuperAdmin allows only platform operators.
func RequireSuperAdmin() fiber.Handler {
	return RequireRole(models.RoleSuperAdmin)
}

// GetCurrentUser returns the current authenticated user
func GetCurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "User not found in context")
	}
	return user, nil
}

// GetCurrentClaims returns the current JWT claims
func GetCurrentClaims(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals("claims").(*Claims)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Claims not found in context")
	}
	return claims, nil
}

// AcademyScope resolves the tenant of the request. Academy members are pinned
// to their own academy. Super admins may pick one with X-Academy-ID or
// ?academy_id=, otherwise they are unscoped ("").
func AcademyScope(c *fiber.Ctx) (string, error) {
	claims, err := GetCurrentClaims(c)
	if err != nil {
		return "", err
	}
	if claims.Role == models.RoleSuperAdmin {
		if v := c.Get("X-Academy-ID"); v != "" {
			return v, nil
		}
		return c.Query("academy_id"), nil
	}
	if claims.AcademyID == "" {
		return "", fiber.NewError(fiber.StatusForbidden, "Account is not attached to an academy")
	}
	return claims.AcademyID, nil
}

// RequireAcademy ensures the request resolves to exactly one academy.
// Use on routes that create academy-owned rows.
func RequireAcademy(c *fiber.Ctx) (string, error) {
	scope, err := AcademyScope(c)
	if err != nil {
		return "", err
	}
	if scope == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "academy_id is required")
	}
	return scope, nil
}
