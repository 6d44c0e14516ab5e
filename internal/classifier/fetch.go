package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"

	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/httpclient"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// EnsureModel makes sure a model file exists at path. When it is missing
// and url is non-empty the model is downloaded, checked against sum (hex
// SHA-256, optional) and moved into place atomically. An existing file is
// never re-downloaded or verified.
func EnsureModel(ctx context.Context, client *httpclient.Client, path, url, sum string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.New(fmt.Errorf("stat model: %w", err)).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Build()
	}
	if url == "" {
		return errors.New(fmt.Errorf("model file %s not found and no download URL configured", filepath.Base(path))).
			Component(componentName).
			Category(errors.CategoryModelLoad).
			Build()
	}
	if client == nil {
		client = httpclient.New(nil)
	}

	start := time.Now()
	log := GetLogger()
	log.Info("downloading model", logger.String("url", errors.ScrubMessage(url)), logger.String("path", path))

	size, err := download(ctx, client, path, url, strings.ToLower(strings.TrimSpace(sum)))
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryNetwork).
			Context("url", errors.ScrubMessage(url)).
			Timing("model-download", time.Since(start)).
			Build()
	}

	log.Info("model downloaded",
		logger.String("path", path),
		logger.String("size", bytes.Format(size)),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func download(ctx context.Context, client *httpclient.Client, path, url, sum string) (int64, error) {
	resp, cancel, err := client.Get(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("download model: %w", err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download model: unexpected status %s", resp.Status)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("write model: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("download model: empty response body")
	}

	if sum != "" {
		if got := hex.EncodeToString(hash.Sum(nil)); got != sum {
			return 0, fmt.Errorf("model checksum mismatch: got %s, want %s", got, sum)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("move model into place: %w", err)
	}
	return n, nil
}
