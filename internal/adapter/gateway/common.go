package gateway

import (
	"fmt"
	"net/http"

	"github.com/aq2208/payflow/configs"
	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/usecase"
)

// validateCardRequest enforces the shared preconditions of the card/bank
// processors: positive amount within configured bounds, bank code present for
// bank transfers, method supported at all.
func validateCardRequest(cfg configs.GatewayConfig, req usecase.InitiateRequest) error {
	switch req.Method {
	case domain.MethodCard:
	case domain.MethodBank:
		if req.BankCode == "" {
			return fmt.Errorf("%w: bank transfer requires a bank code", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: method %q not supported by card/bank gateways", domain.ErrValidation, req.Method)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if req.Amount.Units < cfg.MinUnits || req.Amount.Units > cfg.MaxUnits {
		return fmt.Errorf("%w: amount %d outside gateway bounds [%d, %d]",
			domain.ErrValidation, req.Amount.Units, cfg.MinUnits, cfg.MaxUnits)
	}
	return nil
}

// classifyHTTP maps a gateway HTTP status into the core error taxonomy.
func classifyHTTP(code int, op string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s: credentials rejected (%d)", domain.ErrAuthentication, op, code)
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: %s: rejected (%d)", domain.ErrValidation, op, code)
	default:
		return fmt.Errorf("%w: %s: upstream failure (%d)", domain.ErrNetwork, op, code)
	}
}
