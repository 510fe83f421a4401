package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/aq2208/payflow/configs"
	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/security"
	"github.com/aq2208/payflow/internal/usecase"
)

// PrimaryGateway is the main card/bank processor. JSON API, bearer API key,
// HMAC-signed webhooks.
type PrimaryGateway struct {
	cfg    configs.GatewayConfig
	http   *resty.Client
	signer *security.WebhookSigner
	l      *slog.Logger
}

func NewPrimaryGateway(cfg configs.GatewayConfig, signer *security.WebhookSigner, l *slog.Logger) *PrimaryGateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey)
	return &PrimaryGateway{cfg: cfg, http: client, signer: signer, l: l.With("gateway", "primary")}
}

func (g *PrimaryGateway) Name() domain.GatewayKind { return domain.GatewayPrimary }

type primaryChargeReq struct {
	OrderRef string `json:"order_ref"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
	BankCode string `json:"bank_code,omitempty"`
}

type primaryChargeResp struct {
	ChargeID     string `json:"charge_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (g *PrimaryGateway) Initiate(ctx context.Context, req usecase.InitiateRequest) (usecase.InitiateResult, error) {
	if err := validateCardRequest(g.cfg, req); err != nil {
		return usecase.InitiateResult{}, err
	}

	var out primaryChargeResp
	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(primaryChargeReq{
			OrderRef: req.OrderID,
			Amount:   req.Amount.Units,
			Currency: req.Amount.Currency,
			Method:   string(req.Method),
			BankCode: req.BankCode,
		}).
		SetResult(&out).
		Post("/api/v1/charges")
	if err != nil {
		g.l.Warn("charge request failed", "order_ref", req.OrderID, "error", err)
		return usecase.InitiateResult{}, fmt.Errorf("%w: primary charge: %v", domain.ErrNetwork, err)
	}
	if err := classifyHTTP(resp.StatusCode(), "primary charge"); err != nil {
		g.l.Warn("charge rejected", "order_ref", req.OrderID, "status_code", resp.StatusCode())
		return usecase.InitiateResult{}, err
	}
	if out.ErrorCode != "" {
		return usecase.InitiateResult{}, fmt.Errorf("%w: primary: %s", domain.ErrValidation, out.ErrorMessage)
	}

	st, ok := primaryStatus(out.Status)
	if !ok {
		return usecase.InitiateResult{}, fmt.Errorf("%w: primary returned unknown status %q", domain.ErrNetwork, out.Status)
	}
	return usecase.InitiateResult{ExternalRef: out.ChargeID, Status: st}, nil
}

type primaryStatusResp struct {
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

func (g *PrimaryGateway) QueryStatus(ctx context.Context, externalRef string) (domain.AttemptStatus, error) {
	var out primaryStatusResp
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v1/charges/" + externalRef)
	if err != nil {
		return "", fmt.Errorf("%w: primary status: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		// The processor expires unknown charges; treat as a definite decline.
		return domain.AttemptDeclined, nil
	}
	if err := classifyHTTP(resp.StatusCode(), "primary status"); err != nil {
		return "", err
	}
	st, ok := primaryStatus(out.Status)
	if !ok {
		return "", fmt.Errorf("%w: primary returned unknown status %q", domain.ErrNetwork, out.Status)
	}
	return st, nil
}

func (g *PrimaryGateway) VerifySignature(payload []byte, signature string) bool {
	return g.signer.Verify(payload, signature)
}

type primaryWebhook struct {
	EventID  string `json:"event_id"`
	ChargeID string `json:"charge_id"`
	Status   string `json:"status"`
}

func (g *PrimaryGateway) ParseWebhook(payload []byte) (domain.WebhookNotice, error) {
	var wh primaryWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return domain.WebhookNotice{}, fmt.Errorf("%w: primary webhook: %v", domain.ErrValidation, err)
	}
	if wh.EventID == "" || wh.ChargeID == "" {
		return domain.WebhookNotice{}, fmt.Errorf("%w: primary webhook missing identifiers", domain.ErrValidation)
	}
	st, ok := primaryStatus(wh.Status)
	if !ok {
		return domain.WebhookNotice{}, fmt.Errorf("%w: primary webhook status %q", domain.ErrValidation, wh.Status)
	}
	return domain.WebhookNotice{EventID: wh.EventID, ExternalRef: wh.ChargeID, Status: st}, nil
}

func primaryStatus(s string) (domain.AttemptStatus, bool) {
	switch s {
	case "CREATED", "AUTHORIZING":
		return domain.AttemptPending, true
	case "CAPTURED":
		return domain.AttemptApproved, true
	case "DECLINED", "EXPIRED":
		return domain.AttemptDeclined, true
	case "ERROR":
		return domain.AttemptErrored, true
	}
	return "", false
}

var _ usecase.Gateway = (*PrimaryGateway)(nil)
