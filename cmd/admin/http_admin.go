package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// remoteCmd talks to a running server's admin endpoints instead of opening
// the database file.
func remoteCmd(args []string) {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	player := fs.String("player", "", "player uuid (get/reset)")
	_ = fs.Parse(args)

	op := "health"
	if fs.NArg() > 0 {
		op = strings.TrimSpace(fs.Arg(0))
	}
	base := strings.TrimRight(strings.TrimSpace(*baseURL), "/")

	var req *http.Request
	switch op {
	case "health":
		req, _ = http.NewRequest(http.MethodGet, base+"/healthz", nil)
	case "list":
		req, _ = http.NewRequest(http.MethodGet, base+"/v1/records", nil)
	case "get":
		req, _ = http.NewRequest(http.MethodGet, base+"/v1/records/"+parsePlayer(*player).String(), nil)
	case "reset":
		req, _ = http.NewRequest(http.MethodDelete, base+"/v1/records/"+parsePlayer(*player).String(), nil)
	default:
		fmt.Fprintln(os.Stderr, "unknown remote op:", op)
		os.Exit(2)
	}

	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if len(b) > 0 {
		fmt.Println(strings.TrimSpace(string(b)))
	} else {
		fmt.Println(resp.Status)
	}
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
