package vnpay

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Version        = "2.1.0"
	CommandPay     = "pay"
	CurrencyCode   = "VND"
	createDateForm = "20060102150405"
)

// Config holds VNPay gateway configuration
type Config struct {
	TmnCode    string // Merchant code issued by the gateway
	HashSecret string // Shared secret for checksums
	BaseURL    string // Payment page URL
	ReturnURL  string // Where the gateway redirects the buyer afterwards
}

// Client builds payment redirect URLs. The gateway has no server-to-server
// create call; payment starts with a signed GET redirect.
type Client struct {
	config Config
}

// PaymentRequest represents payment URL creation request
type PaymentRequest struct {
	TxnRef    string          // Unique transaction reference
	Amount    decimal.Decimal // Amount in major units
	OrderInfo string          // Order description
	IPAddr    string          // Buyer IP address
	CreatedAt time.Time
}

// NewClient creates new VNPay client
func NewClient(cfg Config) *Client {
	return &Client{config: cfg}
}

// BuildPaymentURL generates the signed redirect URL for a payment.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if strings.TrimSpace(req.TxnRef) == "" {
		return "", fmt.Errorf("validation error: txn_ref must be non-empty")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(c.config.TmnCode) == "" {
		return "", fmt.Errorf("vnpay config error: tmn_code is empty")
	}
	if strings.TrimSpace(c.config.HashSecret) == "" {
		return "", fmt.Errorf("vnpay config error: hash_secret is empty")
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    c.config.TmnCode,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_Amount":     ToMinorUnits(req.Amount),
		"vnp_CurrCode":   CurrencyCode,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_ReturnUrl":  c.config.ReturnURL,
		"vnp_IpAddr":     req.IPAddr,
		"vnp_CreateDate": createdAt.Format(createDateForm),
	}

	signature := HashParams(params, c.config.HashSecret)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set(ParamSecureHash, signature)

	baseURL := strings.TrimSpace(c.config.BaseURL)
	if baseURL == "" {
		baseURL = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	}

	return strings.TrimRight(baseURL, "?") + "?" + values.Encode(), nil
}
