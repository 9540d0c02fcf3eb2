package handlers

import (
	"net/http"

	"freshchain-ledger-server/internal/ledger"

	"github.com/gin-gonic/gin"
)

type RegistryHandler struct {
	Ledger *ledger.Ledger
}

type RegisterRequest struct {
	Address string `json:"address" binding:"required,eth_addr"`
}

// GetOwner returns the registrar address fixed at deployment.
func (h *RegistryHandler) GetOwner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"owner": h.Ledger.Owner()})
}

// Register adds the address to the role named in the path. Only the owner may call it.
func (h *RegistryHandler) Register(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	role, err := ledger.ParseRole(c.Param("role"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	account, err := ledger.ParseAddress(req.Address)
	if err != nil {
		respondError(c, err)
		return
	}

	n, err := h.Ledger.Register(c.Request.Context(), caller, role, account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "event": n})
}

// HasRole answers the membership predicate for one role.
func (h *RegistryHandler) HasRole(c *gin.Context) {
	role, err := ledger.ParseRole(c.Param("role"))
	if err != nil {
		respondError(c, err)
		return
	}
	addr, err := ledger.ParseAddress(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role, "address": addr, "member": h.Ledger.HasRole(role, addr)})
}

// GetRoles lists every role held by the address.
func (h *RegistryHandler) GetRoles(c *gin.Context) {
	addr, err := ledger.ParseAddress(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": addr,
		"roles":   h.Ledger.RolesOf(addr),
		"isOwner": addr == h.Ledger.Owner(),
	})
}
