package tryon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vastralabs/vastra-backend/pkg/config"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

const maxGeneratorResponseBytes = 1 << 20

// Generator produces a rendered try-on image for a person/garment pair.
type Generator interface {
	Generate(ctx context.Context, personImage, garmentImage string) (resultURL string, err error)
}

// HTTPGenerator calls an external rendering service.
type HTTPGenerator struct {
	httpClient *http.Client
	serviceURL string
}

// NewHTTPGenerator builds a generator against the configured service.
func NewHTTPGenerator(cfg config.TryOnConfig) (*HTTPGenerator, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("try-on service URL required")
	}
	return &HTTPGenerator{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		serviceURL: cfg.ServiceURL,
	}, nil
}

func (g *HTTPGenerator) Generate(ctx context.Context, personImage, garmentImage string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"person_image":  personImage,
		"garment_image": garmentImage,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.serviceURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "try-on service unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeneratorResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("try-on service returned status %d", resp.StatusCode))
	}

	var out struct {
		ResultURL string `json:"result_url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.ResultURL == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "try-on service returned no result URL")
	}
	return out.ResultURL, nil
}

// NullGenerator fails every job with a configuration message. Used when no
// rendering service is configured so job submission still works end to end.
type NullGenerator struct{}

func (NullGenerator) Generate(context.Context, string, string) (string, error) {
	return "", pkgerrors.New(pkgerrors.CodeDependency, "try-on rendering is not configured")
}
