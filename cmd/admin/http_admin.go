package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	sessionID := fs.String("session", "", "session id (optional; includes its map and status table)")
	_ = fs.Parse(args)

	adminRequest(http.MethodGet, adminURL(*baseURL, "/admin/v1/state", *sessionID), 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	sessionID := fs.String("session", "", "session id (optional; defaults to every live session)")
	_ = fs.Parse(args)

	adminRequest(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot", *sessionID), 10*time.Second)
}

func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	sessionID := fs.String("session", "", "session id (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*sessionID) == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}
	adminRequest(http.MethodPost, adminURL(*baseURL, "/admin/v1/reset", *sessionID), 5*time.Second)
}

func adminURL(base, path, sessionID string) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if s := strings.TrimSpace(sessionID); s != "" {
		u += "?session=" + url.QueryEscape(s)
	}
	return u
}

func adminRequest(method, u string, timeout time.Duration) {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
