package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/tenant-access-backend/internal/apperr"
)

// IdentityKey is the gin context key the auth middleware stores the
// *Identity under.
const IdentityKey = "identity"

// CurrentIdentity returns the authenticated caller, or nil.
func CurrentIdentity(c *gin.Context) *Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	ident, _ := v.(*Identity)
	return ident
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type Handler struct{ service Service }

func NewHandler(s Service) *Handler { return &Handler{s} }

// ===============================
// Registration
// ===============================

type registerReq struct {
	User RegisterInput `json:"user"`
}

// POST /users
func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.User)
	if err != nil {
		var verr *apperr.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"status": gin.H{"message": "User couldn't be created successfully. " + strings.Join(verr.Messages(), ", ")},
				"errors": verr.Messages(),
			})
			return
		}
		apperr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": gin.H{"code": http.StatusOK, "message": "Signed up successfully."},
		"data":   PresentUser(user),
	})
}

// ===============================
// Sessions
// ===============================

type signInReq struct {
	User LoginInput `json:"user"`
}

// POST /users/sign_in
func (h *Handler) SignIn(c *gin.Context) {
	var req signInReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.Login(c.Request.Context(), req.User)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Email or password."})
			return
		}
		apperr.Respond(c, err)
		return
	}

	c.Header("Authorization", "Bearer "+session.Token)
	c.JSON(http.StatusOK, gin.H{
		"status": gin.H{"code": http.StatusOK, "message": "Logged in successfully."},
		"token":  session.Token,
		"data":   PresentUser(session.User),
	})
}

// DELETE /users/sign_out
func (h *Handler) SignOut(c *gin.Context) {
	token := BearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found."})
		return
	}
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ===============================
// Tokens
// ===============================

// GET /token/verify
func (h *Handler) Verify(c *gin.Context) {
	ident := CurrentIdentity(c)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "message": "Token is invalid or expired"})
		return
	}

	u := ident.User
	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":          u.ID,
			"email":       u.Email,
			"user_name":   u.UserName,
			"full_name":   u.FullName(),
			"roles":       ident.Grants.RoleNames(),
			"permissions": ident.Grants.PermissionNames(),
			"is_admin":    ident.Grants.IsAdmin(),
			"is_active":   u.IsActive(),
			"status":      u.Status,
		},
		"message": "Token is valid",
	})
}

// GET /token/info
func (h *Handler) Info(c *gin.Context) {
	token := BearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No token provided",
			"message": "Authorization header with Bearer token is required",
		})
		return
	}

	info, err := h.service.Inspect(token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token format", "message": err.Error()})
		return
	}

	message := "Token information retrieved"
	if info.IsExpired {
		message = "Token is expired"
	}
	c.JSON(http.StatusOK, gin.H{"token_info": info, "message": message})
}

// POST /token/refresh
func (h *Handler) Refresh(c *gin.Context) {
	session, err := h.service.Refresh(c.Request.Context(), BearerToken(c))
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Cannot refresh token",
				"message": "Current token is invalid or expired",
			})
			return
		}
		apperr.Respond(c, err)
		return
	}

	c.Header("Authorization", "Bearer "+session.Token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed successfully",
		"token":   session.Token,
		"user": gin.H{
			"id":    session.User.ID,
			"email": session.User.Email,
		},
	})
}

// PresentUser is the public JSON shape of a user.
func PresentUser(u *User) gin.H {
	return gin.H{
		"id":               u.ID,
		"email":            u.Email,
		"user_name":        u.UserName,
		"full_name":        u.FullName(),
		"status":           u.Status,
		"phone":            u.Phone,
		"occupation":       u.Occupation,
		"company_name":     u.CompanyName,
		"location":         u.Location,
		"last_login_at":    u.LastLoginAt,
		"last_activity_at": u.LastActivityAt,
		"created_at":       u.CreatedAt,
		"updated_at":       u.UpdatedAt,
	}
}
