package security

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"orders.read","payments.write"}
	Enabled bool
}

var Clients = map[string]Client{
	"svc-storefront": {ID: "svc-storefront", Secret: "storefront-secret", Perms: []string{"orders.read", "orders.write", "payments.write"}, Enabled: true},
	"svc-oms":        {ID: "svc-oms", Secret: "oms-secret", Perms: []string{"orders.read", "fulfillment.write"}, Enabled: true},
	"svc-finance":    {ID: "svc-finance", Secret: "finance-secret", Perms: []string{"orders.read"}, Enabled: true},
}
