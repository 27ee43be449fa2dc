package wholesale

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/simroam/simroam/internal/config"
	"github.com/simroam/simroam/internal/metrics"
	"github.com/simroam/simroam/internal/retry"
	"go.uber.org/zap"
)

type httpClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	log          *zap.Logger
	metrics      *metrics.Metrics

	mu    sync.Mutex
	token Token
}

// NewHTTPClient builds the Airalo wholesale client. One instance is held by
// the composition root and shared by the fulfillment service, catalog sync
// and usage worker.
func NewHTTPClient(cfg config.Config, log *zap.Logger, m *metrics.Metrics) (Client, error) {
	if cfg.Wholesale.BaseURL == "" || cfg.Wholesale.ClientID == "" || cfg.Wholesale.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	return &httpClient{
		baseURL:      strings.TrimRight(cfg.Wholesale.BaseURL, "/"),
		clientID:     cfg.Wholesale.ClientID,
		clientSecret: cfg.Wholesale.ClientSecret,
		http:         &http.Client{Timeout: 30 * time.Second},
		log:          log.Named("wholesale.client"),
		metrics:      m,
	}, nil
}

type tokenEnvelope struct {
	Data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	} `json:"data"`
}

func (c *httpClient) Authenticate(ctx context.Context) (Token, error) {
	body, _ := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "client_credentials",
	})

	var envelope tokenEnvelope
	if err := c.doJSON(ctx, "token", http.MethodPost, "/v2/token", "", bytes.NewReader(body), &envelope); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if envelope.Data.AccessToken == "" {
		return Token{}, ErrAuthFailed
	}

	token := Token{
		AccessToken: envelope.Data.AccessToken,
		TokenType:   envelope.Data.TokenType,
		ExpiresIn:   envelope.Data.ExpiresIn,
		IssuedAt:    time.Now(),
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// accessToken returns the cached token, re-authenticating when issued-at plus
// ttl has elapsed.
func (c *httpClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if !token.Expired(time.Now()) {
		return token.AccessToken, nil
	}

	fresh, err := c.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

type packagesEnvelope struct {
	Data []struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Type     string  `json:"type"`
		Country  string  `json:"country"`
		Operator string  `json:"operator"`
		Data     int64   `json:"data"`
		Voice    int     `json:"voice"`
		Text     int     `json:"text"`
		Day      int     `json:"day"`
		Price    float64 `json:"price"`
		NetPrice float64 `json:"net_price"`
		Currency string  `json:"currency"`
	} `json:"data"`
	Meta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"meta"`
}

func (c *httpClient) ListPackages(ctx context.Context, req ListPackagesRequest) (ListPackagesResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return ListPackagesResponse{}, err
	}

	query := url.Values{}
	if req.Page > 0 {
		query.Set("page", strconv.Itoa(req.Page))
	}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Type != "" {
		query.Set("filter[type]", req.Type)
	}
	if req.Country != "" {
		query.Set("filter[country]", req.Country)
	}

	var envelope packagesEnvelope
	path := "/v2/packages"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	if err := c.doJSON(ctx, "list_packages", http.MethodGet, path, token, nil, &envelope); err != nil {
		return ListPackagesResponse{}, err
	}

	resp := ListPackagesResponse{
		Page:     envelope.Meta.CurrentPage,
		LastPage: envelope.Meta.LastPage,
	}
	for _, item := range envelope.Data {
		resp.Items = append(resp.Items, PackageItem{
			ExternalID:    item.ID,
			Title:         item.Title,
			Type:          item.Type,
			Country:       item.Country,
			Operator:      item.Operator,
			DataAmountMB:  item.Data,
			VoiceMinutes:  item.Voice,
			TextMessages:  item.Text,
			ValidityDays:  item.Day,
			PriceCents:    toCents(item.Price),
			NetPriceCents: toCents(item.NetPrice),
			Currency:      item.Currency,
		})
	}
	return resp, nil
}

type createOrderEnvelope struct {
	Data struct {
		RequestID string `json:"request_id"`
		Accepted  bool   `json:"accepted"`
	} `json:"data"`
}

func (c *httpClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return CreateOrderResponse{}, err
	}

	body, _ := json.Marshal(map[string]any{
		"package_id":  req.ExternalPackageID,
		"quantity":    req.Quantity,
		"type":        req.Type,
		"description": req.Description,
		"webhook_url": req.WebhookURL,
	})

	var envelope createOrderEnvelope
	if err := c.doJSON(ctx, "create_order", http.MethodPost, "/v2/orders-async", token, bytes.NewReader(body), &envelope); err != nil {
		return CreateOrderResponse{}, err
	}
	if !envelope.Data.Accepted || envelope.Data.RequestID == "" {
		return CreateOrderResponse{}, ErrOrderRejected
	}
	return CreateOrderResponse{
		Accepted:  true,
		RequestID: envelope.Data.RequestID,
	}, nil
}

type usageEnvelope struct {
	Data struct {
		Status         string `json:"status"`
		Total          int64  `json:"total"`
		Remaining      int64  `json:"remaining"`
		TotalVoice     int    `json:"total_voice"`
		RemainingVoice int    `json:"remaining_voice"`
		TotalText      int    `json:"total_text"`
		RemainingText  int    `json:"remaining_text"`
	} `json:"data"`
}

func (c *httpClient) FetchUsage(ctx context.Context, iccid string) (Usage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return Usage{}, err
	}

	var envelope usageEnvelope
	path := "/v2/sims/" + url.PathEscape(iccid) + "/usage"
	if err := c.doJSON(ctx, "fetch_usage", http.MethodGet, path, token, nil, &envelope); err != nil {
		return Usage{}, err
	}

	return Usage{
		ICCID:          iccid,
		Status:         envelope.Data.Status,
		DataTotalMB:    envelope.Data.Total,
		DataRemaining:  envelope.Data.Remaining,
		VoiceTotal:     envelope.Data.TotalVoice,
		VoiceRemaining: envelope.Data.RemainingVoice,
		TextTotal:      envelope.Data.TotalText,
		TextRemaining:  envelope.Data.RemainingText,
	}, nil
}

func (c *httpClient) doJSON(ctx context.Context, call, method, path, token string, body io.Reader, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.ExternalLatency.WithLabelValues(ProviderAiralo, call).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retry.StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    strings.TrimSpace(string(payload)),
		}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(payload, out)
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
