package security

import (
	"fmt"

	"github.com/aq2208/payflow/configs"
)

// Keystore holds the per-gateway signing material, validated once at startup.
type Keystore struct {
	Primary   *WebhookSigner
	Secondary *WebhookSigner
	// CashNet confirmations are synthetic webhooks produced by an internal
	// administrative action, signed with an internally generated key.
	CashNet *WebhookSigner
}

func NewKeystore(cfg configs.Config) (*Keystore, error) {
	p, err := NewWebhookSigner(cfg.Gateways.Primary.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("primary gateway: %w", err)
	}
	s, err := NewWebhookSigner(cfg.Gateways.Secondary.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("secondary gateway: %w", err)
	}
	c, err := NewWebhookSigner(cfg.Gateways.CashNet.InternalKey)
	if err != nil {
		return nil, fmt.Errorf("cashnet gateway: %w", err)
	}
	return &Keystore{Primary: p, Secondary: s, CashNet: c}, nil
}
