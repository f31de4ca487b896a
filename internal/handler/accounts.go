package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashmitsharp/tradebook/internal/cache"
	"github.com/ashmitsharp/tradebook/internal/exchanges"
	"github.com/ashmitsharp/tradebook/internal/models"
	"github.com/ashmitsharp/tradebook/internal/query"
)

const connectionTestTimeout = 30 * time.Second

// ClientFactory builds exchange clients for connection tests.
type ClientFactory interface {
	NewClient(acct exchanges.Account) (exchanges.Client, error)
}

// AccountHandler manages the accounts registered in a session
type AccountHandler struct {
	sessions *Sessions
	factory  ClientFactory
	logger   *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(sessions *Sessions, factory ClientFactory, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		sessions: sessions,
		factory:  factory,
		logger:   logger,
	}
}

// AddAccount verifies credentials against the exchange and registers the account
// @Summary Register an exchange account
// @Description Validates the credentials with a connection test and stores the account in the caller's session. Credentials are kept in memory only.
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body exchanges.Account true "Account credentials"
// @Success 200 {object} models.APIResponse{data=models.AccountInfo} "Account added"
// @Failure 400 {object} models.ErrorResponse "Invalid account or connection test failed"
// @Failure 409 {object} models.ErrorResponse "Account name already registered"
// @Failure 503 {object} models.ErrorResponse "Session could not be stored"
// @Router /accounts [post]
func (h *AccountHandler) AddAccount(c *gin.Context) {
	var acct exchanges.Account
	if err := c.ShouldBindJSON(&acct); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if err := acct.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_account", err.Error())
		return
	}

	sess, err := h.sessions.Ensure(c)
	if err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "session_unavailable", "Could not start a session, please retry")
		return
	}
	for _, existing := range sess.Accounts() {
		if existing.Name == acct.Name {
			respondError(c, http.StatusConflict, "duplicate_account", cache.ErrDuplicateAccount.Error())
			return
		}
	}

	client, err := h.factory.NewClient(acct)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_account", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), connectionTestTimeout)
	defer cancel()
	if err := client.TestConnection(ctx); err != nil {
		h.logger.Warn("Connection test failed",
			zap.String("account", acct.Name),
			zap.String("exchange", string(acct.Exchange)),
			zap.Bool("testnet", acct.Testnet),
			zap.Error(err))
		respondError(c, http.StatusBadRequest, "connection_failed",
			fmt.Sprintf("Connection test failed: %s", query.DescribeFailure(acct.Exchange, "", err)))
		return
	}

	if err := sess.AddAccount(acct); err != nil {
		respondError(c, http.StatusConflict, "duplicate_account", err.Error())
		return
	}

	h.logger.Info("Account added",
		zap.String("account", acct.Name),
		zap.String("exchange", string(acct.Exchange)),
		zap.Bool("testnet", acct.Testnet))
	respondOK(c, fmt.Sprintf("Account %s added", acct.Name), acct.Info())
}

// ListAccounts returns the session's accounts without secrets
// @Summary List registered accounts
// @Tags accounts
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]models.AccountInfo} "Success"
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	infos := []models.AccountInfo{}
	if sess := h.sessions.Lookup(c); sess != nil {
		infos = sess.AccountInfos()
	}
	respondOK(c, "", infos)
}

// RemoveAccount deletes one account from the session
// @Summary Remove an account
// @Tags accounts
// @Produce json
// @Param name path string true "Account name"
// @Success 200 {object} models.APIResponse "Account removed"
// @Failure 404 {object} models.ErrorResponse "Account not found"
// @Router /accounts/{name} [delete]
func (h *AccountHandler) RemoveAccount(c *gin.Context) {
	name := c.Param("name")
	sess := h.sessions.Lookup(c)
	if sess == nil || !sess.RemoveAccount(name) {
		respondError(c, http.StatusNotFound, "account_not_found", fmt.Sprintf("Account %s not found", name))
		return
	}
	respondOK(c, fmt.Sprintf("Account %s removed", name), nil)
}

// ClearAccounts removes every account and any cached results
// @Summary Remove all accounts
// @Tags accounts
// @Produce json
// @Success 200 {object} models.APIResponse "Accounts cleared"
// @Router /accounts [delete]
func (h *AccountHandler) ClearAccounts(c *gin.Context) {
	if sess := h.sessions.Lookup(c); sess != nil {
		sess.ClearAccounts()
	}
	respondOK(c, "All accounts cleared", nil)
}

func isValidationError(err error) bool {
	return errors.Is(err, query.ErrNoAccounts) ||
		errors.Is(err, query.ErrMissingSymbol) ||
		errors.Is(err, exchanges.ErrInvalidWindow) ||
		errors.Is(err, exchanges.ErrUnknownExchange) ||
		errors.Is(err, exchanges.ErrMissingCredentials) ||
		errors.Is(err, exchanges.ErrMissingAccountName) ||
		errors.Is(err, exchanges.ErrMissingPassphrase) ||
		errors.Is(err, exchanges.ErrUnexpectedPassphrase)
}
