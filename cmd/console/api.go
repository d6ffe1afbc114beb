package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pathrpg/engine/internal/handlers"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// doJSON sends one API request and decodes the response into out. A nil
// out discards the body. Error responses are unwrapped into their
// user-facing message.
func doJSON(client *http.Client, method, url, token string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func register(client *http.Client, baseURL, username, password string) (*handlers.TokenResponse, error) {
	var tok handlers.TokenResponse
	err := doJSON(client, http.MethodPost, baseURL+"/v1/auth/register", "",
		credentials{Username: username, Password: password}, http.StatusCreated, &tok)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func login(client *http.Client, baseURL, username, password string) (*handlers.TokenResponse, error) {
	var tok handlers.TokenResponse
	err := doJSON(client, http.MethodPost, baseURL+"/v1/auth/login", "",
		credentials{Username: username, Password: password}, http.StatusOK, &tok)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// getGame fetches the caller's game in progress. A nil game with nil
// error means there is none yet.
func getGame(client *http.Client, baseURL, token string) (*handlers.GameResponse, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/v1/game", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%s", errorResp.Error)
	}

	var game handlers.GameResponse
	if err := json.Unmarshal(body, &game); err != nil {
		return nil, fmt.Errorf("failed to parse game response: %w", err)
	}
	return &game, nil
}

func startGame(client *http.Client, baseURL, token string) (*handlers.GameResponse, error) {
	var game handlers.GameResponse
	err := doJSON(client, http.MethodPost, baseURL+"/v1/game", token, nil, http.StatusOK, &game)
	if err != nil {
		return nil, err
	}
	return &game, nil
}

type choicePayload struct {
	Choice string `json:"choice"`
}

func sendChoice(client *http.Client, baseURL, token, choiceKey string) (*handlers.GameResponse, error) {
	var game handlers.GameResponse
	err := doJSON(client, http.MethodPost, baseURL+"/v1/game/choice", token,
		choicePayload{Choice: choiceKey}, http.StatusOK, &game)
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func completeGame(client *http.Client, baseURL, token string) (*handlers.CompleteResponse, error) {
	var done handlers.CompleteResponse
	err := doJSON(client, http.MethodPost, baseURL+"/v1/game/complete", token, nil, http.StatusOK, &done)
	if err != nil {
		return nil, err
	}
	return &done, nil
}

func getLeaderboard(client *http.Client, baseURL string) (*handlers.LeaderboardResponse, error) {
	var board handlers.LeaderboardResponse
	err := doJSON(client, http.MethodGet, baseURL+"/v1/leaderboard", "", nil, http.StatusOK, &board)
	if err != nil {
		return nil, err
	}
	return &board, nil
}

func getAchievements(client *http.Client, baseURL, token string) (*handlers.AchievementsResponse, error) {
	var achs handlers.AchievementsResponse
	err := doJSON(client, http.MethodGet, baseURL+"/v1/achievements", token, nil, http.StatusOK, &achs)
	if err != nil {
		return nil, err
	}
	return &achs, nil
}
