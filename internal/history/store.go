package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imagegen-studio/common"
	"imagegen-studio/internal/imgutil"
)

const (
	// FileName 历史记录文件名，位于存储目录内
	FileName = "history.json"
	// TimestampLayout 时间戳格式，同时用于文件名
	TimestampLayout = "20060102_150405"
)

// ErrNotFound 图片文件不存在
var ErrNotFound = errors.New("image not found")

// Entry 一条生成历史
type Entry struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path"` // 相对于存储目录的文件名
	Format      string `json:"format"`
	RemoteURL   string `json:"remote_url,omitempty"`
}

// Mirror 可选的远程镜像，保存成功后上传图片副本
type Mirror interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// Config 历史存储配置
type Config struct {
	Dir        string
	HTTPClient *http.Client     // 下载图片使用，默认 http.DefaultClient
	Mirror     Mirror           // 可选
	Now        func() time.Time // 可选，测试时注入
}

// Store 本地生成历史。内存列表是权威读缓存，每次追加后整体重写历史文件。
// 单进程单写者，不做跨进程协调。
type Store struct {
	mu         sync.RWMutex
	dir        string
	path       string
	entries    []Entry
	httpClient *http.Client
	mirror     Mirror
	now        func() time.Time
}

// NewStoreFromConfig 从通用配置创建历史存储
func NewStoreFromConfig(cfg *common.Config, mirror Mirror) (*Store, error) {
	return NewStore(Config{
		Dir:    cfg.ImagesDir,
		Mirror: mirror,
	})
}

// NewStore 创建存储目录并加载已有历史，文件不存在视为空历史
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &Store{
		dir:        dir,
		path:       filepath.Join(dir, FileName),
		httpClient: cfg.HTTPClient,
		mirror:     cfg.Mirror,
		now:        cfg.Now,
	}
	if s.httpClient == nil {
		s.httpClient = http.DefaultClient
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.entries = s.load()
	common.WithFields(map[string]interface{}{
		"dir":     dir,
		"entries": len(s.entries),
	}).Info("History loaded")
	return s, nil
}

// load 读取历史文件。损坏的文件会被挪到一旁，避免下次保存时被覆盖。
func (s *Store) load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			common.WithError(err).WithField("path", s.path).Error("Failed to read history file")
		}
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		backup := s.path + ".corrupt"
		common.WithError(err).WithFields(map[string]interface{}{
			"path":   s.path,
			"backup": backup,
		}).Error("History file is corrupt, starting with empty history")
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			common.WithError(renameErr).Warn("Failed to move corrupt history file aside")
		}
		return nil
	}

	for i := range entries {
		if entries[i].Format == "" {
			entries[i].Format = formatFromName(entries[i].ImagePath)
		}
	}
	return entries
}

// Dir 返回存储目录的绝对路径
func (s *Store) Dir() string {
	return s.dir
}

// SaveImage 下载 imageURL 指向的图片，按 format 重新编码后写入存储目录，
// 追加一条历史并重写历史文件。返回图片的绝对路径。
func (s *Store) SaveImage(ctx context.Context, imageURL string, description string, format string) (string, error) {
	format = imgutil.NormalizeFormat(format)
	logger := common.WithFields(map[string]interface{}{
		"image_url": imageURL,
		"format":    format,
	})

	data, err := downloadImage(ctx, s.httpClient, imageURL)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch generated image")
		return "", err
	}

	img, _, err := imgutil.Decode(data)
	if err != nil {
		logger.WithError(err).Error("Failed to decode generated image")
		return "", err
	}

	encoded, err := imgutil.Encode(img, format)
	if err != nil {
		logger.WithError(err).Error("Failed to encode image")
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := s.now().Format(TimestampLayout)
	filename, err := s.writeImage(timestamp, format, encoded)
	if err != nil {
		logger.WithError(err).Error("Failed to write image file")
		return "", err
	}
	fullPath := filepath.Join(s.dir, filename)

	entry := Entry{
		Timestamp:   timestamp,
		Description: description,
		ImagePath:   filename,
		Format:      format,
	}
	if s.mirror != nil {
		remoteURL, err := s.mirror.Upload(ctx, filename, encoded, imgutil.MimeType(format))
		if err != nil {
			// 镜像失败不影响本地保存
			logger.WithError(err).Warn("Failed to mirror image")
		} else {
			entry.RemoteURL = remoteURL
		}
	}

	s.entries = append(s.entries, entry)
	if err := s.persist(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		_ = os.Remove(fullPath)
		logger.WithError(err).Error("Failed to write history file")
		return "", err
	}

	logger.WithFields(map[string]interface{}{
		"path": fullPath,
		"size": len(encoded),
	}).Info("Image saved to history")
	return fullPath, nil
}

// writeImage 以 image_<timestamp>.<ext> 命名写入图片；同一秒内重复保存时追加 _2、_3 后缀
func (s *Store) writeImage(timestamp, format string, data []byte) (string, error) {
	for n := 1; ; n++ {
		name := fmt.Sprintf("image_%s.%s", timestamp, format)
		if n > 1 {
			name = fmt.Sprintf("image_%s_%d.%s", timestamp, n, format)
		}

		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			_ = os.Remove(f.Name())
			return "", err
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(f.Name())
			return "", err
		}
		return name, nil
	}
}

// persist 整体重写历史文件（先写临时文件再重命名）
func (s *Store) persist() error {
	list := s.entries
	if list == nil {
		list = []Entry{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit history file: %w", err)
	}
	return nil
}

// History 按插入顺序（旧到新）返回历史副本
func (s *Store) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len 返回历史条数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry 返回指定下标的历史
func (s *Store) Entry(index int) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[index], true
}

// LoadImage 读取并解码存储目录中的图片
func (s *Store) LoadImage(filename string) (image.Image, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		common.WithError(err).WithField("path", path).Error("Failed to read image")
		return nil, err
	}

	img, _, err := imgutil.Decode(data)
	if err != nil {
		common.WithError(err).WithField("path", path).Error("Failed to decode stored image")
		return nil, err
	}
	return img, nil
}

// resolve 将文件名解析到存储目录内，拒绝越界路径
func (s *Store) resolve(filename string) (string, error) {
	if filename == "" || filepath.IsAbs(filename) {
		return "", fmt.Errorf("invalid image filename %q", filename)
	}
	path := filepath.Join(s.dir, filename)
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid image filename %q", filename)
	}
	return path, nil
}

func formatFromName(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return imgutil.NormalizeFormat(ext)
}
