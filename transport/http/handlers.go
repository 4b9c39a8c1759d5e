package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/sessionkit"
	"github.com/layer-3/sessionkit/core"
)

// Handlers contains HTTP handlers over a session manager
type Handlers struct {
	client sessionkit.Client
}

// NewHandlers creates new handlers
func NewHandlers(client sessionkit.Client) *Handlers {
	return &Handlers{
		client: client,
	}
}

// ListKeys returns every key id
func (h *Handlers) ListKeys(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"keys": h.client.ListSessionKeys()})
}

// CreateKey generates a session key
func (h *Handlers) CreateKey(c *gin.Context) {
	var req struct {
		KeyID *string `json:"key_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id, err := h.client.CreateSessionKey(c.Request.Context(), req.KeyID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key_id": id})
}

// ImportKey stores a key given as JWK JSON or base64 JWK JSON
func (h *Handlers) ImportKey(c *gin.Context) {
	var req struct {
		Key           string  `json:"key" binding:"required"`
		KeyID         *string `json:"key_id"`
		AllowOverride bool    `json:"allow_override"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id, err := h.client.ImportKeyFromEnvValue(c.Request.Context(), req.Key, req.KeyID, req.AllowOverride)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key_id": id})
}

// RenameKey moves a key to a new id
func (h *Handlers) RenameKey(c *gin.Context) {
	var req struct {
		NewID string `json:"new_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.client.RenameSessionKeyID(c.Request.Context(), c.Param("id"), req.NewID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key_id": req.NewID})
}

// PublicKey returns the public JWK of a key
func (h *Handlers) PublicKey(c *gin.Context) {
	id := c.Param("id")
	jwkJSON, err := h.client.JWK(&id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/jwk+json", []byte(jwkJSON))
}

// Identity returns the DID and verification method of a key
func (h *Handlers) Identity(c *gin.Context) {
	id := c.Param("id")
	uri, err := h.client.IdentityURI(c.Request.Context(), &id)
	if err != nil {
		writeError(c, err)
		return
	}

	did, err := h.client.GetDID(c.Request.Context(), &id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"did": did, "verification_method": uri})
}

// UpdateSession attaches a session to a key
func (h *Handlers) UpdateSession(c *gin.Context) {
	var session core.Session
	if err := c.ShouldBindJSON(&session); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id := c.Param("id")
	if err := h.client.UpdateSession(c.Request.Context(), &id, session); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SignInvocation issues an invocation token from a signed-in key
func (h *Handlers) SignInvocation(c *gin.Context) {
	var req struct {
		Audience string `json:"audience" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id := c.Param("id")
	token, err := h.client.SignInvocation(c.Request.Context(), &id, req.Audience)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "token_type": "Bearer"})
}

// Capabilities returns the accumulated grants
func (h *Handlers) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"grants": h.client.Capabilities()})
}

// ResetCapabilities discards the accumulated grants
func (h *Handlers) ResetCapabilities(c *gin.Context) {
	h.client.ResetCapability()
	c.Status(http.StatusNoContent)
}

// AddDefaultActions grants actions on every target of a namespace
func (h *Handlers) AddDefaultActions(c *gin.Context) {
	var req struct {
		Namespace string   `json:"namespace" binding:"required"`
		Actions   []string `json:"actions"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	writeResult(c, h.client.AddDefaultActions(req.Namespace, req.Actions))
}

// AddTargetedActions grants actions on one target of a namespace
func (h *Handlers) AddTargetedActions(c *gin.Context) {
	var req struct {
		Namespace string   `json:"namespace" binding:"required"`
		Target    string   `json:"target" binding:"required"`
		Actions   []string `json:"actions"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	writeResult(c, h.client.AddTargetedActions(req.Namespace, req.Target, req.Actions))
}

// AddExtraFields attaches fields to the latest grant scope of a namespace
func (h *Handlers) AddExtraFields(c *gin.Context) {
	var req struct {
		Namespace string         `json:"namespace" binding:"required"`
		Fields    map[string]any `json:"fields" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	writeResult(c, h.client.AddExtraFields(req.Namespace, req.Fields))
}

// BuildMessage renders a SIWE message for a key
func (h *Handlers) BuildMessage(c *gin.Context) {
	var req struct {
		core.SiweRequest
		KeyID *string `json:"keyId"`
		URI   *string `json:"uri"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	message, err := h.client.Build(c.Request.Context(), req.SiweRequest, req.KeyID, req.URI)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// CompleteSignIn verifies a signed message and attaches the session
func (h *Handlers) CompleteSignIn(c *gin.Context) {
	var req struct {
		KeyID     *string `json:"keyId"`
		Message   string  `json:"message" binding:"required"`
		Signature string  `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	session, err := h.client.CompleteSignIn(c.Request.Context(), req.KeyID, req.Message, req.Signature)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// writeResult reports a collapsed capability operation. Details went to
// the diagnostic sink.
func writeResult(c *gin.Context, ok bool) {
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// statusFor maps error kinds to status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrKeyNotFound), errors.Is(err, core.ErrVaultMiss):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrSessionNotAttached):
		return http.StatusForbidden
	case errors.Is(err, core.ErrIdentityDerivation), errors.Is(err, core.ErrSigning):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrMissingKeyID),
		errors.Is(err, core.ErrInvalidURI),
		errors.Is(err, core.ErrInvalidDomain),
		errors.Is(err, core.ErrInvalidAddress),
		errors.Is(err, core.ErrInvalidNonce),
		errors.Is(err, core.ErrInvalidStatement),
		errors.Is(err, core.ErrInvalidRequestID),
		errors.Is(err, core.ErrTimestampParse),
		errors.Is(err, core.ErrResourceURI),
		errors.Is(err, core.ErrInvalidNamespace),
		errors.Is(err, core.ErrActionEncoding),
		errors.Is(err, core.ErrSerialization),
		errors.Is(err, core.ErrNoMatchingGrant),
		errors.Is(err, core.ErrMalformedMessage),
		errors.Is(err, core.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
