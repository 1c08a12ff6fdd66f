package utils

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
)

// IsPNG 校验字节流是否为 PNG
func IsPNG(data []byte) bool {
	return len(data) > 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
}

// MakeThumbnail 生成缩略图 PNG（画廊列表用）
// width: 目标宽度，高度按比例缩放
func MakeThumbnail(data []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %v", err)
	}

	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("编码缩略图失败: %v", err)
	}
	return buf.Bytes(), nil
}
