package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/anubis/middleware"
	"github.com/upb/anubis/models"
	"github.com/upb/anubis/utils"
	"go.uber.org/zap"
)

// LatestTimestamp addresses the most recent valid signature set in place of a key timestamp
const LatestTimestamp = "_latest"

// SignatureService defines the signature operations used by the HTTP surface
type SignatureService interface {
	CreateSignatureSet(ctx context.Context, tenant, keyTimestamp string, identityManager models.Signature) (*models.ApplicationSignatureSet, error)
	InvalidateSignatureSet(ctx context.Context, tenant, keyTimestamp string) error
	ListKeyTimestamps(ctx context.Context, tenant string) ([]string, error)
	GetSignatureSet(ctx context.Context, tenant, keyTimestamp string) (*models.ApplicationSignatureSet, error)
	GetLatestSignatureSet(ctx context.Context, tenant string) (*models.ApplicationSignatureSet, error)
	GetApplicationSignature(ctx context.Context, tenant, keyTimestamp string) (*models.Signature, error)
	GetLatestApplicationSignature(ctx context.Context, tenant string) (string, *models.Signature, error)
}

// SignatureHandler handles the tenant signature endpoints
type SignatureHandler struct {
	service SignatureService
	logger  *zap.Logger
}

// NewSignatureHandler creates a new SignatureHandler
func NewSignatureHandler(service SignatureService, logger *zap.Logger) *SignatureHandler {
	return &SignatureHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCreate handles POST /signatures/{timestamp}
func (h *SignatureHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	timestamp := chi.URLParam(r, "timestamp")

	if err := utils.ValidateVar(timestamp, "timestamp", "required,keytimestamp"); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var req models.Signature
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	set, err := h.service.CreateSignatureSet(ctx, tenant, timestamp, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("signature set created",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("tenant", tenant),
		zap.String("key_timestamp", timestamp))

	_ = utils.WriteOK(w, set)
}

// HandleList handles GET /signatures
func (h *SignatureHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	timestamps, err := h.service.ListKeyTimestamps(r.Context(), middleware.GetTenantFromContext(r.Context()))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, timestamps)
}

// HandleGet handles GET /signatures/{timestamp}
func (h *SignatureHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	timestamp := chi.URLParam(r, "timestamp")

	var (
		set *models.ApplicationSignatureSet
		err error
	)
	if timestamp == LatestTimestamp {
		set, err = h.service.GetLatestSignatureSet(ctx, tenant)
	} else {
		set, err = h.service.GetSignatureSet(ctx, tenant, timestamp)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, set)
}

// HandleDelete handles DELETE /signatures/{timestamp}
// The set is invalidated, not removed.
func (h *SignatureHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	timestamp := chi.URLParam(r, "timestamp")

	if err := h.service.InvalidateSignatureSet(ctx, tenant, timestamp); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("signature set deleted",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("tenant", tenant),
		zap.String("key_timestamp", timestamp))

	_ = utils.WriteAccepted(w, "")
}

// ApplicationSignatureResponse is the application public key at one key timestamp
type ApplicationSignatureResponse struct {
	Timestamp string `json:"timestamp"`
	models.Signature
}

// HandleGetApplication handles GET /signatures/{timestamp}/application
func (h *SignatureHandler) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)
	timestamp := chi.URLParam(r, "timestamp")

	var (
		signature *models.Signature
		err       error
	)
	if timestamp == LatestTimestamp {
		timestamp, signature, err = h.service.GetLatestApplicationSignature(ctx, tenant)
	} else {
		signature, err = h.service.GetApplicationSignature(ctx, tenant, timestamp)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, ApplicationSignatureResponse{Timestamp: timestamp, Signature: *signature})
}
