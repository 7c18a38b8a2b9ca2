package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	baseURL     string
	fingerprint string
	clientIP    string
)

var rootCmd = &cobra.Command{
	Use:           "smoke",
	Short:         "Post sample observations to a running collector",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func main() {
	rootCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Server base URL")
	rootCmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Fingerprint to send (random when empty)")
	rootCmd.Flags().StringVar(&clientIP, "ip", "203.0.113.10", "Address sent as X-Forwarded-For")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if fingerprint == "" {
		fingerprint = uuid.NewString()
	}

	visit := map[string]interface{}{
		"fingerprint":         fingerprint,
		"userAgent":           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"language":            "en-US",
		"timezone":            "Europe/London",
		"platform":            "Win32",
		"screenWidth":         1920,
		"screenHeight":        1080,
		"touchSupport":        false,
		"hardwareConcurrency": 8,
		"clientTime":          time.Now().UnixMilli(),
	}

	client := &http.Client{Timeout: 15 * time.Second}

	// Two identical posts: the second must come back as a repeat visit
	for i := 1; i <= 2; i++ {
		jsonData, _ := json.Marshal(visit)
		req, err := http.NewRequest(http.MethodPost, baseURL+"/collect", bytes.NewBuffer(jsonData))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", clientIP)

		status, body, err := send(client, req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		fmt.Printf("collect #%d -> %d %s\n", i, status, body)
	}

	// Admin stats, only when a secret is available to mint a token
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("ADMIN_JWT_SECRET not set, skipping admin endpoints")
		return nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"sub":  "smoke",
		"exp":  time.Now().Add(5 * time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	req, _ := http.NewRequest(http.MethodGet, baseURL+"/api/visitor/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	status, body, err := send(client, req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	fmt.Printf("stats -> %d %s\n", status, body)

	if status == http.StatusOK {
		fmt.Println("\n✅ Collector and admin API are working.")
	} else {
		fmt.Println("\n❌ Admin API rejected the token.")
	}
	return nil
}

func send(client *http.Client, req *http.Request) (int, string, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(bytes.TrimSpace(body)), nil
}
