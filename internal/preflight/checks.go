package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const checkTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckVoices asks the backend for its voice list.
func CheckVoices(ctx context.Context, name string, lister VoiceLister) Result {
	if lister == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	voices, err := lister.ListVoices(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	if len(voices) == 0 {
		return Result{Name: name, Detail: "backend reported no voices"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d voice(s) available", len(voices))}
}

// CheckReachable verifies that something answers HTTP at baseURL. Any
// response below 500 counts as reachable.
func CheckReachable(ctx context.Context, name, baseURL string) Result {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("bad url (%v)", err)}
	}
	client := &http.Client{Timeout: checkTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (backend unreachable)"
	}
	return err.Error()
}
