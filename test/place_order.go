package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Manual smoke check against a running API:
//
//	ACCESS_TOKEN=$(curl -s 'localhost:5556/token?sub=auth0|alice' | jq -r .token) go run ./test
func main() {
	token := os.Getenv("ACCESS_TOKEN")
	if token == "" {
		fmt.Println("Please set ACCESS_TOKEN environment variable with a valid access token")
		fmt.Println("Run ./cmd/devtoken locally and request one from /token?sub=auth0|alice")
		return
	}
	baseURL := os.Getenv("API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 10 * time.Second}

	orderData := map[string]interface{}{
		"pizza": "Margherita",
		"size":  "medium",
		"total": 16.99,
	}
	jsonData, _ := json.Marshal(orderData)

	fmt.Println("POST /api/orders")
	status, result, err := call(client, http.MethodPost, baseURL+"/api/orders", token, jsonData)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return
	}
	report(status, result)

	fmt.Println("\nGET /api/orders")
	status, result, err = call(client, http.MethodGet, baseURL+"/api/orders", token, nil)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return
	}
	report(status, result)
}

func call(client *http.Client, method, url, token string, body []byte) (int, map[string]interface{}, error) {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	_ = json.Unmarshal(raw, &result)
	fmt.Printf("Status: %d\nResponse: %s\n", resp.StatusCode, string(raw))
	return resp.StatusCode, result, nil
}

func report(status int, result map[string]interface{}) {
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		fmt.Println("✅ Request succeeded")
		if warnings, ok := result["warnings"].([]interface{}); ok && len(warnings) > 0 {
			fmt.Printf("Warnings: %v\n", warnings)
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		fmt.Println("❌ Request rejected")
		if errorData, ok := result["error"].(map[string]interface{}); ok {
			fmt.Printf("Error details: %v (%v)\n", errorData["message"], errorData["code"])
		}
	default:
		fmt.Println("❌ Unexpected response")
	}
}
