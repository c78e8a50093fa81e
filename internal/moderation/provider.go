package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Likelihood mirrors the safe-search annotation scale of the vision API.
type Likelihood string

const (
	LikelihoodUnknown      Likelihood = "UNKNOWN"
	LikelihoodVeryUnlikely Likelihood = "VERY_UNLIKELY"
	LikelihoodUnlikely     Likelihood = "UNLIKELY"
	LikelihoodPossible     Likelihood = "POSSIBLE"
	LikelihoodLikely       Likelihood = "LIKELY"
	LikelihoodVeryLikely   Likelihood = "VERY_LIKELY"
)

type Verdict struct {
	Adult    Likelihood `json:"adult"`
	Violence Likelihood `json:"violence"`
	Racy     Likelihood `json:"racy"`
}

// Safe is false when any dimension is LIKELY or worse.
func (v Verdict) Safe() bool {
	for _, l := range []Likelihood{v.Adult, v.Violence, v.Racy} {
		if l == LikelihoodLikely || l == LikelihoodVeryLikely {
			return false
		}
	}
	return true
}

// Provider classifies an image by URL.
type Provider interface {
	Classify(ctx context.Context, imageURL string) (Verdict, error)
}

// VisionProvider talks to the safe-search HTTP endpoint.
type VisionProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewVisionProvider(baseURL, apiKey string) *VisionProvider {
	if baseURL == "" {
		baseURL = "http://localhost:8500"
	}
	return &VisionProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type safeSearchReq struct {
	ImageURL string `json:"image_url"`
}

type safeSearchResp struct {
	Adult    Likelihood `json:"adult"`
	Violence Likelihood `json:"violence"`
	Racy     Likelihood `json:"racy"`
	Error    string     `json:"error,omitempty"`
}

func (p *VisionProvider) Classify(ctx context.Context, imageURL string) (Verdict, error) {
	if p.Client == nil {
		return Verdict{}, errors.New("vision: http client is nil")
	}

	b, err := json.Marshal(safeSearchReq{ImageURL: imageURL})
	if err != nil {
		return Verdict{}, err
	}

	url := fmt.Sprintf("%s/v1/safesearch", p.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("vision: status %d: %s", resp.StatusCode, string(body))
	}

	var out safeSearchResp
	if err := json.Unmarshal(body, &out); err != nil {
		return Verdict{}, err
	}
	if out.Error != "" {
		return Verdict{}, fmt.Errorf("vision: %s", out.Error)
	}

	return Verdict{Adult: out.Adult, Violence: out.Violence, Racy: out.Racy}, nil
}
