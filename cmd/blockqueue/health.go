package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultHealthURL = "http://localhost:3400/ready"

// CheckHealth reports whether args request a health check rather than a
// normal run, so the same binary can double as its own Docker HEALTHCHECK
// probe.
func CheckHealth(args []string) bool {
	for _, a := range args {
		a = strings.TrimLeft(a, "-")
		if a == "health" {
			return true
		}
	}
	return false
}

// getHealthURL extracts the -health.url value from args, in any of the
// -health.url=X, -health.url X, -health.url:X or --health.url=X forms,
// falling back to defaultHealthURL.
func getHealthURL(args []string) string {
	const flagName = "health.url"
	for i, a := range args {
		trimmed := strings.TrimLeft(a, "-")
		if !strings.HasPrefix(trimmed, flagName) {
			continue
		}
		rest := trimmed[len(flagName):]
		if rest == "" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return defaultHealthURL
		}
		if rest[0] == '=' || rest[0] == ':' {
			return rest[1:]
		}
	}
	return defaultHealthURL
}

// RunHealthCheck issues a GET to the configured health URL and returns a
// process exit code: 0 if it responds with a 2xx status, 1 otherwise.
func RunHealthCheck(args []string) int {
	url := getHealthURL(args)

	client := http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	return 0
}
