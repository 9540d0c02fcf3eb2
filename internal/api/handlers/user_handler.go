// server/internal/api/handlers/user_handler.go
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"freshchain-ledger-server/internal/auth"
	"freshchain-ledger-server/internal/database"
	"freshchain-ledger-server/internal/ledger"
	"freshchain-ledger-server/internal/models"

	"github.com/gin-gonic/gin"
)

// UserRepository is the account storage the handler needs; *database.UserStore implements it.
type UserRepository interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

type UserHandler struct {
	Users  UserRepository
	Issuer *auth.TokenIssuer
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Name        string `json:"name" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
	Address     string `json:"address" binding:"required,eth_addr"`
	AccountRole string `json:"accountRole" binding:"omitempty,oneof=admin member"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.Users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, database.ErrUserNotFound) {
		respondError(c, err)
		return
	}
	if err != nil || !auth.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if user.Status != models.UserStatusActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is not active"})
		return
	}

	address, err := ledger.ParseAddress(user.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := h.Issuer.Generate(user.Email, address, user.AccountRole)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// CreateUser creates a login account bound to a ledger address. Ledger roles are granted
// separately through the registry.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	address, err := ledger.ParseAddress(req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.AccountRole == "" {
		req.AccountRole = auth.AccountRoleMember
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := h.Users.Create(c.Request.Context(), models.User{
		Email:       req.Email,
		Name:        req.Name,
		Password:    hashedPassword,
		Address:     address.Hex(),
		AccountRole: req.AccountRole,
		Status:      models.UserStatusActive,
	})
	if errors.Is(err, database.ErrDuplicateEmail) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "kind": "CONFLICT"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("User %s created for address %s", user.Email, user.Address)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "user": user})
}
