package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxImageSize 单张图片下载上限（20MB）
const MaxImageSize = 20 * 1024 * 1024

// downloadImage 从 URL 下载图片原始数据
func downloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image exceeds maximum size of %d bytes", MaxImageSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded image is empty")
	}
	return data, nil
}
