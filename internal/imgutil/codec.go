package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"
)

// JPEGQuality 保存 jpeg 时使用的固定质量
const JPEGQuality = 95

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// NormalizeFormat 归一化输出格式，jpg 视为 jpeg，其它未知格式回落为 png
func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// MimeType 返回格式对应的 MIME 类型
func MimeType(format string) string {
	if NormalizeFormat(format) == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Decode 解码 image.Decode 支持的图片数据（PNG、JPEG、GIF）
func Decode(data []byte) (image.Image, string, error) {
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, kind, nil
}

// FlattenOnWhite 将带透明通道的图片合成到白色背景上
func FlattenOnWhite(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}

// Encode 按格式重新编码图片：jpeg 先铺白底再以固定质量压缩，png 无损编码
func Encode(img image.Image, format string) ([]byte, error) {
	buf := new(bytes.Buffer)

	switch NormalizeFormat(format) {
	case FormatJPEG:
		if err := jpeg.Encode(buf, FlattenOnWhite(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		if err := png.Encode(buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	}
	return buf.Bytes(), nil
}
