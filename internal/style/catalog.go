package style

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imagegen-studio/common"
)

const (
	// DefaultID 未知或未设置的风格统一回落到该风格
	DefaultID = "default"
	// CustomID 唯一可由用户修改并持久化的风格槽位
	CustomID = "custom"
	// CustomPrefix 自定义风格固定使用的前缀
	CustomPrefix = "Create an image in custom style:"
)

// ErrEmptySuffix 自定义风格描述为空
var ErrEmptySuffix = errors.New("custom style suffix is empty")

// Definition 风格模板：prefix + 用户描述 + suffix
type Definition struct {
	ID     string `json:"id"`
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

// Catalog 风格目录。内置风格在创建后不可变，只有 custom 槽位可以被加载或保存。
type Catalog struct {
	mu         sync.RWMutex
	builtins   map[string]Definition
	custom     *Definition
	customPath string
}

// NewCatalog 创建风格目录，并尝试从 customPath 加载自定义风格
func NewCatalog(customPath string) *Catalog {
	c := &Catalog{
		builtins:   make(map[string]Definition, len(builtinStyles)),
		customPath: customPath,
	}
	for _, def := range builtinStyles {
		c.builtins[def.ID] = def
	}

	if def, ok := c.LoadCustom(); ok {
		c.custom = &def
	}
	return c
}

// Resolve 返回 id 对应的风格定义。未知 id 或尚未设置的 custom 返回 default，永不失败。
func (c *Catalog) Resolve(id string) Definition {
	id = normalizeID(id)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if id == CustomID {
		if c.custom != nil {
			return *c.custom
		}
		return c.builtins[DefaultID]
	}
	if def, ok := c.builtins[id]; ok {
		return def
	}
	return c.builtins[DefaultID]
}

// IDs 按展示顺序返回可选风格，custom 已设置时排在最后
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(builtinStyles)+1)
	for _, def := range builtinStyles {
		ids = append(ids, def.ID)
	}
	if c.custom != nil {
		ids = append(ids, CustomID)
	}
	return ids
}

// LoadCustom 从侧文件读取自定义风格（第一行 prefix，第二行 suffix）。
// 文件不存在、不可读或格式不正确时返回 false，仅记录日志。
func (c *Catalog) LoadCustom() (Definition, bool) {
	if c.customPath == "" {
		return Definition{}, false
	}

	f, err := os.Open(c.customPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			common.WithError(err).WithField("path", c.customPath).Warn("Failed to open custom style file")
		}
		return Definition{}, false
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		common.WithError(err).WithField("path", c.customPath).Warn("Failed to read custom style file")
		return Definition{}, false
	}

	if len(lines) < 2 || strings.TrimSpace(lines[1]) == "" {
		common.WithFields(map[string]interface{}{
			"path":  c.customPath,
			"lines": len(lines),
		}).Warn("Malformed custom style file, ignoring")
		return Definition{}, false
	}

	return Definition{
		ID:     CustomID,
		Prefix: strings.TrimSpace(lines[0]),
		Suffix: strings.TrimSpace(lines[1]),
	}, true
}

// SaveCustom 使用固定前缀包装 suffix，写入侧文件并更新内存中的 custom 槽位。
// 写入失败时槽位保持不变。
func (c *Catalog) SaveCustom(suffix string) error {
	// 侧文件固定为两行，换行折叠为空格
	suffix = strings.Join(strings.Fields(suffix), " ")
	if suffix == "" {
		return ErrEmptySuffix
	}
	if c.customPath == "" {
		return fmt.Errorf("custom style file path is not configured")
	}

	if err := os.MkdirAll(filepath.Dir(c.customPath), 0755); err != nil {
		common.WithError(err).WithField("path", c.customPath).Error("Failed to create custom style directory")
		return fmt.Errorf("failed to create custom style directory: %w", err)
	}

	content := CustomPrefix + "\n" + suffix + "\n"
	if err := os.WriteFile(c.customPath, []byte(content), 0644); err != nil {
		common.WithError(err).WithField("path", c.customPath).Error("Failed to write custom style file")
		return fmt.Errorf("failed to write custom style file: %w", err)
	}

	def := Definition{ID: CustomID, Prefix: CustomPrefix, Suffix: suffix}
	c.mu.Lock()
	c.custom = &def
	c.mu.Unlock()

	common.WithField("path", c.customPath).Info("Custom style saved")
	return nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
