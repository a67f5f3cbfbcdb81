// Package payment integrates with a hosted-checkout payment gateway: the API
// redirects the customer to a signed checkout URL and the gateway calls back
// with a signed result.
package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidSignature is returned when a gateway callback fails
	// signature verification.
	ErrInvalidSignature = errors.New("invalid gateway signature")
	// ErrPaymentFailed is returned when the gateway reports a non-success
	// response code.
	ErrPaymentFailed = errors.New("payment failed")
)

// Gateway success response code.
const responseCodeOK = "00"

// Config holds the merchant credentials and endpoints for the gateway.
type Config struct {
	BaseURL    string
	ReturnURL  string
	MerchantID string
	Secret     string
	Version    string
}

// Gateway builds signed checkout URLs and verifies return callbacks.
type Gateway struct {
	cfg Config
	now func() time.Time
}

// NewGateway creates a Gateway from the merchant configuration.
func NewGateway(cfg Config) *Gateway {
	if cfg.Version == "" {
		cfg.Version = "2.1.0"
	}
	return &Gateway{cfg: cfg, now: time.Now}
}

// CheckoutURL builds the hosted-checkout redirect URL for an order.
// The amount is sent in the gateway's minor unit (x100) and the whole query
// is signed with HMAC-SHA512 over the sorted encoded parameters.
func (g *Gateway) CheckoutURL(orderID string, amount decimal.Decimal, clientIP string) (string, error) {
	if !amount.IsPositive() {
		return "", errors.New("amount must be positive")
	}

	params := url.Values{}
	params.Set("vnp_Version", g.cfg.Version)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", g.cfg.MerchantID)
	params.Set("vnp_Amount", amount.Mul(decimal.NewFromInt(100)).Round(0).String())
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", orderID)
	params.Set("vnp_OrderInfo", "ORDER:"+orderID)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", g.cfg.ReturnURL)
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_CreateDate", g.now().Format("20060102150405"))

	signed := g.sign(params)
	params.Set("vnp_SecureHash", signed)

	return g.cfg.BaseURL + "?" + params.Encode(), nil
}

// Result is a verified gateway callback.
type Result struct {
	OrderID       string
	TransactionID string
	Amount        decimal.Decimal
	BankCode      string
	PaidAt        time.Time
}

// VerifyReturn validates the signature on a gateway return callback and
// reports the payment outcome. A bad signature returns ErrInvalidSignature;
// a valid signature with a non-success response code returns
// ErrPaymentFailed with the parsed result still populated.
func (g *Gateway) VerifyReturn(query url.Values) (*Result, error) {
	received := query.Get("vnp_SecureHash")
	if received == "" {
		return nil, ErrInvalidSignature
	}

	params := url.Values{}
	for k, vs := range query {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		for _, v := range vs {
			if v != "" {
				params.Add(k, v)
			}
		}
	}

	expected := g.sign(params)
	if subtle.ConstantTimeCompare([]byte(strings.ToUpper(received)), []byte(expected)) != 1 {
		return nil, ErrInvalidSignature
	}

	res := &Result{
		TransactionID: params.Get("vnp_TransactionNo"),
		BankCode:      params.Get("vnp_BankCode"),
		PaidAt:        g.now(),
	}
	if info := params.Get("vnp_OrderInfo"); strings.HasPrefix(info, "ORDER:") {
		res.OrderID = strings.TrimPrefix(info, "ORDER:")
	} else {
		res.OrderID = params.Get("vnp_TxnRef")
	}
	if raw := params.Get("vnp_Amount"); raw != "" {
		if minor, err := strconv.ParseInt(raw, 10, 64); err == nil {
			res.Amount = decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
		}
	}

	if params.Get("vnp_ResponseCode") != responseCodeOK {
		return res, ErrPaymentFailed
	}
	return res, nil
}

// sign computes the uppercase hex HMAC-SHA512 of the sorted encoded params.
// url.Values.Encode sorts by key, which keeps signing canonical on both the
// outgoing and the verification path.
func (g *Gateway) sign(params url.Values) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.Secret))
	mac.Write([]byte(params.Encode()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
