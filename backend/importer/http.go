package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// HTTPSource fetches course blocks from the modulestore's REST API.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) FetchBlocks(courseID string) ([]Block, error) {
	endpoint := fmt.Sprintf("%s/courses/%s/blocks", s.BaseURL, url.PathEscape(courseID))
	resp, err := s.Client.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("modulestore returned %d for %s", resp.StatusCode, courseID)
	}

	var blocks []Block
	if err := json.NewDecoder(resp.Body).Decode(&blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// HTTPStore writes blocks into bundles through the bundle store's REST API.
type HTTPStore struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStore) WriteBlock(bundleUUID uuid.UUID, block Block) error {
	endpoint := fmt.Sprintf("%s/bundles/%s/blocks/%s", s.BaseURL, bundleUUID, url.PathEscape(block.ID))

	body, err := json.Marshal(block)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("bundle store returned %d for block %s", resp.StatusCode, block.ID)
	}
	return nil
}
