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

// SecondaryGateway is the fallback card/bank processor. Different wire format
// from the primary (its own field names and status vocabulary), same contract.
type SecondaryGateway struct {
	cfg    configs.GatewayConfig
	http   *resty.Client
	signer *security.WebhookSigner
	l      *slog.Logger
}

func NewSecondaryGateway(cfg configs.GatewayConfig, signer *security.WebhookSigner, l *slog.Logger) *SecondaryGateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("X-Api-Key", cfg.APIKey)
	return &SecondaryGateway{cfg: cfg, http: client, signer: signer, l: l.With("gateway", "secondary")}
}

func (g *SecondaryGateway) Name() domain.GatewayKind { return domain.GatewaySecondary }

type secondaryTxnReq struct {
	Reference string `json:"reference"`
	Value     int64  `json:"value"`
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	BankCode  string `json:"bankCode,omitempty"`
}

type secondaryTxnResp struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

func (g *SecondaryGateway) Initiate(ctx context.Context, req usecase.InitiateRequest) (usecase.InitiateResult, error) {
	if err := validateCardRequest(g.cfg, req); err != nil {
		return usecase.InitiateResult{}, err
	}

	var out secondaryTxnResp
	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(secondaryTxnReq{
			Reference: req.OrderID,
			Value:     req.Amount.Units,
			Currency:  req.Amount.Currency,
			Channel:   string(req.Method),
			BankCode:  req.BankCode,
		}).
		SetResult(&out).
		Post("/pay/transactions")
	if err != nil {
		g.l.Warn("transaction request failed", "order_ref", req.OrderID, "error", err)
		return usecase.InitiateResult{}, fmt.Errorf("%w: secondary transaction: %v", domain.ErrNetwork, err)
	}
	if err := classifyHTTP(resp.StatusCode(), "secondary transaction"); err != nil {
		g.l.Warn("transaction rejected", "order_ref", req.OrderID, "status_code", resp.StatusCode())
		return usecase.InitiateResult{}, err
	}

	st, ok := secondaryStatus(out.State)
	if !ok {
		return usecase.InitiateResult{}, fmt.Errorf("%w: secondary returned unknown state %q", domain.ErrNetwork, out.State)
	}
	return usecase.InitiateResult{ExternalRef: out.ID, Status: st}, nil
}

func (g *SecondaryGateway) QueryStatus(ctx context.Context, externalRef string) (domain.AttemptStatus, error) {
	var out secondaryTxnResp
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/pay/transactions/" + externalRef)
	if err != nil {
		return "", fmt.Errorf("%w: secondary status: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return domain.AttemptDeclined, nil
	}
	if err := classifyHTTP(resp.StatusCode(), "secondary status"); err != nil {
		return "", err
	}
	st, ok := secondaryStatus(out.State)
	if !ok {
		return "", fmt.Errorf("%w: secondary returned unknown state %q", domain.ErrNetwork, out.State)
	}
	return st, nil
}

func (g *SecondaryGateway) VerifySignature(payload []byte, signature string) bool {
	return g.signer.Verify(payload, signature)
}

type secondaryWebhook struct {
	ID          string `json:"id"`
	Transaction string `json:"transaction"`
	State       string `json:"state"`
}

func (g *SecondaryGateway) ParseWebhook(payload []byte) (domain.WebhookNotice, error) {
	var wh secondaryWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return domain.WebhookNotice{}, fmt.Errorf("%w: secondary webhook: %v", domain.ErrValidation, err)
	}
	if wh.ID == "" || wh.Transaction == "" {
		return domain.WebhookNotice{}, fmt.Errorf("%w: secondary webhook missing identifiers", domain.ErrValidation)
	}
	st, ok := secondaryStatus(wh.State)
	if !ok {
		return domain.WebhookNotice{}, fmt.Errorf("%w: secondary webhook state %q", domain.ErrValidation, wh.State)
	}
	return domain.WebhookNotice{EventID: wh.ID, ExternalRef: wh.Transaction, Status: st}, nil
}

func secondaryStatus(s string) (domain.AttemptStatus, bool) {
	switch s {
	case "created", "processing":
		return domain.AttemptPending, true
	case "succeeded":
		return domain.AttemptApproved, true
	case "failed", "expired":
		return domain.AttemptDeclined, true
	case "errored":
		return domain.AttemptErrored, true
	}
	return "", false
}

var _ usecase.Gateway = (*SecondaryGateway)(nil)
