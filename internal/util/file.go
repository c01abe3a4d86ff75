package util

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

// SniffMimeType 读取文件头识别 MIME 类型，只接受 allowedTypes 中的前缀
func SniffMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(reader, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}

	mimeType := http.DetectContentType(buffer[:n])

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) {
			return mimeType, nil
		}
	}

	return mimeType, fmt.Errorf("%w: file type %s not allowed", ErrInvalidUpload, mimeType)
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeImage)
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, MimeVideo)
}

// AllowedExtension 扩展名与 MIME 类别需一致
func AllowedExtension(filename, mimeType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case IsImage(mimeType):
		return slices.Contains(AllowedImageExtensions, ext)
	case IsVideo(mimeType):
		return slices.Contains(AllowedVideoExtensions, ext)
	}
	return false
}
