package offertsv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MockUser is a candidate author for generated offers.
type MockUser struct {
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email" yaml:"email"`
	AvatarPath string `json:"avatarPath" yaml:"avatarPath"`
	Type       string `json:"type" yaml:"type"`
}

// MockData holds the vocabulary generated offers are drawn from.
type MockData struct {
	Titles       []string   `json:"titles" yaml:"titles"`
	Descriptions []string   `json:"descriptions" yaml:"descriptions"`
	Images       []string   `json:"images" yaml:"images"`
	Categories   []string   `json:"categories" yaml:"categories"`
	Users        []MockUser `json:"users" yaml:"users"`
}

// Validate checks that every list has at least one entry.
func (m *MockData) Validate() error {
	switch {
	case len(m.Titles) == 0:
		return errors.New("mock data has no titles")
	case len(m.Descriptions) == 0:
		return errors.New("mock data has no descriptions")
	case len(m.Images) == 0:
		return errors.New("mock data has no images")
	case len(m.Categories) == 0:
		return errors.New("mock data has no categories")
	case len(m.Users) == 0:
		return errors.New("mock data has no users")
	}
	return nil
}

// maxMockDataBytes bounds responses from the mock data server.
const maxMockDataBytes = 16 << 20

// FetchMockData downloads MockData JSON from url.
func FetchMockData(ctx context.Context, client *http.Client, url string) (*MockData, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mock data: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch mock data: %s", resp.Status)
	}
	var data MockData
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMockDataBytes)).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode mock data: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// LoadMockData reads MockData from a local .json, .yaml or .yml file.
func LoadMockData(path string) (*MockData, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read mock data: %w", err)
	}
	var data MockData
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &data)
	default:
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode mock data %s: %w", path, err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}
