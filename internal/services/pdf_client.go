package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	types "github.com/havenstay/leaseflow-backend/internal/domain"
	pkgerr "github.com/havenstay/leaseflow-backend/internal/pkg/errors"
	"github.com/havenstay/leaseflow-backend/internal/platform/envutil"
	"github.com/havenstay/leaseflow-backend/internal/platform/logger"
)

// PdfClient is the document-rendering collaborator. Both calls are
// synchronous with a timeout; the contract service invokes them from a
// background goroutine so state transitions never wait on rendering.
type PdfClient interface {
	GeneratePreviewPdf(ctx context.Context, c *types.Contract) (string, error)
	GenerateFinalPdf(ctx context.Context, c *types.Contract) (string, error)
}

type PdfConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func PdfConfigFromEnv() PdfConfig {
	return PdfConfig{
		BaseURL:    strings.TrimSpace(os.Getenv("PDF_RENDERER_BASE_URL")),
		Timeout:    envutil.Seconds("PDF_RENDERER_TIMEOUT_SECONDS", 30*time.Second),
		MaxRetries: envutil.Int("PDF_RENDERER_MAX_RETRIES", 3),
	}
}

type httpPdfClient struct {
	log        *logger.Logger
	cfg        PdfConfig
	httpClient *http.Client
}

func NewPdfClient(log *logger.Logger, cfg PdfConfig) (PdfClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing PDF_RENDERER_BASE_URL")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &httpPdfClient{
		log:        log.With("client", "PdfClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type renderRequest struct {
	ContractID string `json:"contract_id"`
	PropertyID string `json:"property_id"`
	TenantID   string `json:"tenant_id"`
	LandlordID string `json:"landlord_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Rent       string `json:"monthly_rent"`
	Deposit    string `json:"deposit"`
	Final      bool   `json:"final"`
}

type renderResponse struct {
	URL string `json:"url"`
}

func (p *httpPdfClient) GeneratePreviewPdf(ctx context.Context, c *types.Contract) (string, error) {
	return p.render(ctx, c, false)
}

func (p *httpPdfClient) GenerateFinalPdf(ctx context.Context, c *types.Contract) (string, error) {
	return p.render(ctx, c, true)
}

func (p *httpPdfClient) render(ctx context.Context, c *types.Contract, final bool) (string, error) {
	if c == nil {
		return "", pkgerr.ErrInvalidArgument
	}
	body, err := json.Marshal(renderRequest{
		ContractID: c.ID.String(),
		PropertyID: c.PropertyID.String(),
		TenantID:   c.TenantID.String(),
		LandlordID: c.LandlordID.String(),
		StartDate:  c.StartDate.UTC().Format(time.RFC3339),
		EndDate:    c.EndDate.UTC().Format(time.RFC3339),
		Rent:       c.MonthlyRent.String(),
		Deposit:    c.Deposit.String(),
		Final:      final,
	})
	if err != nil {
		return "", err
	}

	endpoint := p.cfg.BaseURL + "/render/preview"
	if final {
		endpoint = p.cfg.BaseURL + "/render/final"
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		url, err := p.renderOnce(ctx, endpoint, body)
		if err == nil {
			return url, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		p.log.Warn("PDF render attempt failed",
			"contract_id", c.ID,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: pdf render timed out: %v", pkgerr.ErrExternalService, lastErr)
	}
	return "", fmt.Errorf("%w: pdf render: %v", pkgerr.ErrExternalService, lastErr)
}

func (p *httpPdfClient) renderOnce(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("renderer status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out renderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("renderer response: %w", err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", fmt.Errorf("renderer returned empty url")
	}
	return out.URL, nil
}

// disabledPdfClient is wired when no renderer is configured. Contract flow
// proceeds; the PDF URL just never fills in.
type disabledPdfClient struct{}

func NewDisabledPdfClient() PdfClient { return disabledPdfClient{} }

func (disabledPdfClient) GeneratePreviewPdf(ctx context.Context, c *types.Contract) (string, error) {
	return "", fmt.Errorf("%w: pdf renderer not configured", pkgerr.ErrExternalService)
}

func (disabledPdfClient) GenerateFinalPdf(ctx context.Context, c *types.Contract) (string, error) {
	return "", fmt.Errorf("%w: pdf renderer not configured", pkgerr.ErrExternalService)
}
