package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

var (
	apiRoot   = "http://localhost:8080"
	baseURL   = apiRoot + "/api/v1"
	authToken string
)

// TestResponse wraps the API response for testing
type TestResponse struct {
	Status  string
	Message string
	Data    map[string]interface{}
	RawData string
}

func (r TestResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r TestResponse) GetString(key string) string {
	if r.Data == nil {
		return ""
	}
	if v, ok := r.Data[key].(string); ok {
		return v
	}
	return ""
}

func checkAPIServer() error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(apiRoot + "/health")
	if err != nil {
		return fmt.Errorf("API server not reachable: %v", err)
	}
	resp.Body.Close()
	return nil
}

func TestMain(m *testing.M) {
	if url := os.Getenv("API_URL"); url != "" {
		apiRoot = url
		baseURL = apiRoot + "/api/v1"
	}

	if err := checkAPIServer(); err != nil {
		fmt.Printf("Skipping API tests: %v\nMake sure the API server is running at %s\n", err, baseURL)
		os.Exit(0)
	}

	setupAuth()

	os.Exit(m.Run())
}

func setupAuth() {
	email := fmt.Sprintf("tester_%d@example.com", time.Now().UnixNano())
	password := "testpass123"

	registerResp := makeRequest("POST", "/auth/register", map[string]interface{}{
		"email":    email,
		"name":     "API Tester",
		"password": password,
		"timezone": "UTC",
	}, "")
	if !registerResp.IsSuccess() {
		fmt.Printf("Failed to register test user: %s\n", registerResp.Message)
		os.Exit(1)
	}

	loginResp := makeRequest("POST", "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if !loginResp.IsSuccess() {
		fmt.Printf("Failed to login: %s\n", loginResp.Message)
		os.Exit(1)
	}

	authToken = loginResp.GetString("access_token")
	if authToken == "" {
		fmt.Println("Failed to get auth token")
		os.Exit(1)
	}
}

func makeRequest(method, path string, body interface{}, token string) TestResponse {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return TestResponse{Status: "error", Message: fmt.Sprintf("failed to marshal request body: %v", err)}
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+path, reqBody)
	if err != nil {
		return TestResponse{Status: "error", Message: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return TestResponse{Status: "error", Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TestResponse{Status: "error", Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return TestResponse{Status: "error", Message: fmt.Sprintf("failed to decode response: %v", err), RawData: string(raw)}
	}

	out := TestResponse{
		Status:  envelope.Status,
		Message: envelope.Message,
		RawData: string(envelope.Data),
	}
	// Object payloads are exposed as a map; arrays stay in RawData.
	var data map[string]interface{}
	if json.Unmarshal(envelope.Data, &data) == nil {
		out.Data = data
	}
	return out
}
