package training

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PlottingService handles communication with the sidecar plotting
// application. It is disabled by default so training never depends on the
// sidecar being up.
type PlottingService struct {
	baseURL    string
	httpClient *http.Client
	enabled    bool
}

// PlottingServiceConfig contains configuration for the plotting service.
type PlottingServiceConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultPlottingServiceConfig returns the conventional local sidecar
// address.
func DefaultPlottingServiceConfig() PlottingServiceConfig {
	return PlottingServiceConfig{
		BaseURL: "http://localhost:8080",
		Timeout: 30 * time.Second,
	}
}

// PlotSeries is one named curve of a plot.
type PlotSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// PlotData is the payload sent to the sidecar for one plot.
type PlotData struct {
	PlotID string       `json:"plot_id"`
	Title  string       `json:"title"`
	YLabel string       `json:"y_label"`
	XLabel string       `json:"x_label"`
	Series []PlotSeries `json:"series"`
}

// PlottingResponse represents the response from the plotting service.
type PlottingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	PlotURL string `json:"plot_url,omitempty"`
	ViewURL string `json:"view_url,omitempty"`
	PlotID  string `json:"plot_id,omitempty"`
}

// NewPlottingService creates a new plotting service client.
func NewPlottingService(config PlottingServiceConfig) *PlottingService {
	return &PlottingService{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		enabled: false,
	}
}

// Enable enables the plotting service.
func (ps *PlottingService) Enable() { ps.enabled = true }

// Disable disables the plotting service.
func (ps *PlottingService) Disable() { ps.enabled = false }

// IsEnabled returns whether the plotting service is enabled.
func (ps *PlottingService) IsEnabled() bool { return ps.enabled }

// SendCurves builds a train/test curve plot and sends it. When the
// service is disabled this is a no-op.
func (ps *PlottingService) SendCurves(title, metric string, train, test []float64) error {
	if !ps.enabled {
		return nil
	}
	data := PlotData{
		PlotID: uuid.New().String(),
		Title:  title,
		YLabel: metric,
		XLabel: "epoch",
		Series: []PlotSeries{
			{Name: "train " + metric, Values: train},
			{Name: "test " + metric, Values: test},
		},
	}
	_, err := ps.SendPlotData(data)
	return err
}

// SendPlotData sends plot data to the sidecar plotting service.
func (ps *PlottingService) SendPlotData(plotData PlotData) (*PlottingResponse, error) {
	if !ps.enabled {
		return &PlottingResponse{
			Success: false,
			Message: "Plotting service is disabled",
		}, nil
	}

	jsonData, err := json.Marshal(plotData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plot data: %w", err)
	}

	url := fmt.Sprintf("%s/api/plot", ps.baseURL)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cvnn-training")

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var plotResponse PlottingResponse
	if err := json.Unmarshal(respBody, &plotResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &plotResponse, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, plotResponse.Message)
	}
	return &plotResponse, nil
}

// CheckHealth checks if the plotting service is available.
func (ps *PlottingService) CheckHealth() error {
	if !ps.enabled {
		return fmt.Errorf("plotting service is disabled")
	}
	url := fmt.Sprintf("%s/health", ps.baseURL)
	resp, err := ps.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send health check request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}
