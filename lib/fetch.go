package lib

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/siderolabs/go-retry/retry"
)

const (
	fetchAttempts   = 3
	fetchRetryDelay = 5 * time.Second
)

// DownloadFile fetches a remote file to dest, retrying transient failures up
// to 3 times with a fixed delay. The destination is only kept when the
// transfer succeeds and the resulting file is non-empty.
func DownloadFile(url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("mkdir failed: %w", err)
	}

	attempt := 0
	return retry.Constant(time.Duration(fetchAttempts)*fetchRetryDelay+time.Second,
		retry.WithUnits(fetchRetryDelay)).Retry(func() error {
		attempt++
		err := fetchOnce(url, dest)
		if err == nil {
			return nil
		}
		if attempt >= fetchAttempts {
			return err
		}
		PrintWarning(fmt.Sprintf("fetch %s failed (attempt %d/%d): %v", url, attempt, fetchAttempts, err))
		return retry.ExpectedError(err)
	})
}

func fetchOnce(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("fetched %s but file is empty", url)
	}
	return nil
}
