package gateway

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/theplant/luhn"

	"github.com/aq2208/payflow/configs"
	domain "github.com/aq2208/payflow/internal/entity"
	"github.com/aq2208/payflow/internal/security"
	"github.com/aq2208/payflow/internal/usecase"
)

// CashNetGateway issues payment codes redeemable at cash collection points.
// The network itself never pushes confirmations: an administrative action,
// recorded as a synthetic webhook signed with an internal key, reports the
// payment. Codes carry a Luhn check digit and expire after a configured TTL;
// QueryStatus on an expired or unknown pending code is a deterministic decline.
type CashNetGateway struct {
	cfg    configs.CashNetConfig
	signer *security.WebhookSigner
	l      *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	issued map[string]issuedCode
}

type issuedCode struct {
	orderID   string
	expiresAt time.Time
}

func NewCashNetGateway(cfg configs.CashNetConfig, signer *security.WebhookSigner, l *slog.Logger) *CashNetGateway {
	return &CashNetGateway{
		cfg:    cfg,
		signer: signer,
		l:      l.With("gateway", "cashnet"),
		now:    time.Now,
		issued: make(map[string]issuedCode),
	}
}

func (g *CashNetGateway) Name() domain.GatewayKind { return domain.GatewayCashNet }

func (g *CashNetGateway) Initiate(ctx context.Context, req usecase.InitiateRequest) (usecase.InitiateResult, error) {
	if req.Method != domain.MethodCash {
		return usecase.InitiateResult{}, fmt.Errorf("%w: cash network only handles method cash", domain.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return usecase.InitiateResult{}, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if req.Amount.Units < g.cfg.MinUnits || req.Amount.Units > g.cfg.MaxUnits {
		return usecase.InitiateResult{}, fmt.Errorf("%w: amount %d outside cash network bounds [%d, %d]",
			domain.ErrValidation, req.Amount.Units, g.cfg.MinUnits, g.cfg.MaxUnits)
	}

	code, err := g.newCode()
	if err != nil {
		return usecase.InitiateResult{}, fmt.Errorf("generate payment code: %w", err)
	}
	expiry := g.now().Add(g.cfg.CodeTTL)

	g.mu.Lock()
	g.issued[code] = issuedCode{orderID: req.OrderID, expiresAt: expiry}
	g.mu.Unlock()

	g.l.Info("cash payment code issued",
		"order_ref", req.OrderID, "code", code, "expires_at", expiry)
	return usecase.InitiateResult{ExternalRef: code, Status: domain.AttemptPending}, nil
}

func (g *CashNetGateway) QueryStatus(ctx context.Context, externalRef string) (domain.AttemptStatus, error) {
	g.mu.Lock()
	ic, ok := g.issued[externalRef]
	g.mu.Unlock()
	if !ok {
		// Unknown to the network (or lost across a restart): the code cannot
		// be paid anymore, report a definite decline.
		return domain.AttemptDeclined, nil
	}
	if g.now().After(ic.expiresAt) {
		return domain.AttemptDeclined, nil
	}
	return domain.AttemptPending, nil
}

func (g *CashNetGateway) VerifySignature(payload []byte, signature string) bool {
	return g.signer.Verify(payload, signature)
}

type cashnetWebhook struct {
	EventID string `json:"event_id"`
	Code    string `json:"code"`
	Status  string `json:"status"`
}

func (g *CashNetGateway) ParseWebhook(payload []byte) (domain.WebhookNotice, error) {
	var wh cashnetWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return domain.WebhookNotice{}, fmt.Errorf("%w: cashnet webhook: %v", domain.ErrValidation, err)
	}
	if wh.EventID == "" || wh.Code == "" {
		return domain.WebhookNotice{}, fmt.Errorf("%w: cashnet webhook missing identifiers", domain.ErrValidation)
	}
	if !validCode(wh.Code) {
		return domain.WebhookNotice{}, fmt.Errorf("%w: cashnet code fails checksum", domain.ErrValidation)
	}
	var st domain.AttemptStatus
	switch wh.Status {
	case "PAID":
		st = domain.AttemptApproved
	case "EXPIRED", "VOID":
		st = domain.AttemptDeclined
	default:
		return domain.WebhookNotice{}, fmt.Errorf("%w: cashnet webhook status %q", domain.ErrValidation, wh.Status)
	}
	return domain.WebhookNotice{EventID: wh.EventID, ExternalRef: wh.Code, Status: st}, nil
}

// newCode builds <prefix><9 random digits><luhn check digit>.
func (g *CashNetGateway) newCode() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	random := binary.BigEndian.Uint64(buf[:]) % 1_000_000_000
	body := fmt.Sprintf("%s%09d", g.cfg.CodePrefix, random)
	n, err := strconv.Atoi(body)
	if err != nil {
		return "", fmt.Errorf("code prefix must be numeric: %w", err)
	}
	check := luhn.CalculateLuhn(n)
	return fmt.Sprintf("%s%d", body, check), nil
}

// validCode recomputes the embedded checksum.
func validCode(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return luhn.Valid(n)
}

var _ usecase.Gateway = (*CashNetGateway)(nil)
