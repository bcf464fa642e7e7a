package handlers

import (
	"context"
	"math/big"
	"net/http"

	"github.com/upb/anubis/internal/keys"
	"github.com/upb/anubis/middleware"
	"github.com/upb/anubis/models"
	"github.com/upb/anubis/utils"
	"go.uber.org/zap"
)

// Headers carrying the identity manager public key on provisioning
const (
	HeaderPublicKeyModulus  = "X-Tenant-Public-Key-Modulus"
	HeaderPublicKeyExponent = "X-Tenant-Public-Key-Exponent"
)

// Provisioner stores a tenant's identity manager key under the provisioning version
type Provisioner interface {
	ProvisionTenant(ctx context.Context, tenant string, identityManager models.Signature) (*models.ApplicationSignatureSet, error)
}

// InitializeHandler handles tenant provisioning
type InitializeHandler struct {
	provisioner Provisioner
	logger      *zap.Logger
}

// NewInitializeHandler creates a new InitializeHandler
func NewInitializeHandler(provisioner Provisioner, logger *zap.Logger) *InitializeHandler {
	return &InitializeHandler{
		provisioner: provisioner,
		logger:      logger,
	}
}

// HandleInitialize handles POST /initialize
func (h *InitializeHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := middleware.GetTenantFromContext(ctx)

	mod, ok := bigIntHeader(w, r, HeaderPublicKeyModulus)
	if !ok {
		return
	}
	exp, ok := bigIntHeader(w, r, HeaderPublicKeyExponent)
	if !ok {
		return
	}

	set, err := h.provisioner.ProvisionTenant(ctx, tenant, models.Signature{
		PublicKeyMod: mod,
		PublicKeyExp: exp,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("tenant initialized",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("tenant", tenant))

	_ = utils.WriteOK(w, set)
}

// bigIntHeader parses a decimal big integer header, writing a 400 when it is
// absent or malformed.
func bigIntHeader(w http.ResponseWriter, r *http.Request, name string) (*big.Int, bool) {
	value, err := keys.ParseBigInt(r.Header.Get(name))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Header ["+name+"] must be a valid big integer.", map[string]interface{}{
			"header": name,
		})
		return nil, false
	}
	return value, true
}
