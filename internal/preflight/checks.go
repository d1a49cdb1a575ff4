package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"treegift/internal/config"
	"treegift/internal/remote"
)

const checkTimeout = 5 * time.Second

// CheckRemote lists a single user to confirm the data service is reachable
// and accepts the configured token.
func CheckRemote(ctx context.Context, cfg config.Remote) Result {
	const name = "Remote API"

	if strings.TrimSpace(cfg.APIToken) == "" {
		return Result{Name: name, Detail: "missing api token"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	client := remote.NewClient(remote.Config{
		BaseURL:        cfg.BaseURL,
		APIToken:       cfg.APIToken,
		TimeoutSeconds: int(checkTimeout / time.Second),
	})
	if _, err := client.GetUsers(checkCtx, 0, 1); err != nil {
		var status *remote.StatusError
		if errors.As(err, &status) {
			switch status.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return Result{Name: name, Detail: "auth failed (invalid api token)"}
			default:
				return Result{Name: name, Detail: fmt.Sprintf("request failed (%d)", status.StatusCode)}
			}
		}
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckStorage issues a HEAD against the public storage root. Any response
// below 500 counts as reachable since bucket roots commonly deny listing.
func CheckStorage(ctx context.Context, publicBaseURL string) Result {
	const name = "Object storage"

	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing public url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("bad url (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: checkTimeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckNtfyTopic validates the topic URL without publishing to it.
func CheckNtfyTopic(topic string) Result {
	const name = "Notifications"

	u, err := url.Parse(strings.TrimSpace(topic))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%q is not an http(s) topic url", topic)}
	}
	if strings.Trim(u.Path, "/") == "" {
		return Result{Name: name, Detail: "topic url has no topic path"}
	}
	return Result{Name: name, Passed: true, Detail: u.String()}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
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
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
