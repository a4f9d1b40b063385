package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buckleypaul/paneltester/internal/device"
)

type rpcRequest struct {
	Method string `json:"method"`
	Params Report `json:"params"`
}

// Remote uploads reports to the factory test database over JSON-RPC.
type Remote struct {
	url      string
	password string
	tester   string
	testType string
	client   *http.Client
}

func NewRemote(url, password, tester, testType string) *Remote {
	return &Remote{
		url:      url,
		password: password,
		tester:   tester,
		testType: testType,
		client:   &http.Client{Timeout: time.Minute},
	}
}

// SendTestData posts the report of d and returns the response body.
func (r *Remote) SendTestData(ctx context.Context, d *device.DeviceTest) (string, error) {
	if d.Identity == "" {
		return NoIdentity, nil
	}

	body, err := json.MarshalIndent(rpcRequest{
		Method: "insert_test_report",
		Params: NewReport(d, r.testType, r.tester),
	}, "", "  ")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", r.password)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return string(data), fmt.Errorf("report rejected: %s", resp.Status)
	}
	return string(data), nil
}
