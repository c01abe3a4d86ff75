package service

import (
	"aerovision_backend/internal/util"
	"aerovision_backend/pkg/logger"
	"aerovision_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MediaAsset 上传结果，url 可直接写入图片 / 视频内容块
type MediaAsset struct {
	URL       string          `json:"url"`
	Kind      string          `json:"kind"`
	MimeType  string          `json:"mimeType"`
	Size      int64           `json:"size"`
	PosterURL string          `json:"posterUrl,omitempty"`
	Duration  string          `json:"duration,omitempty"`
	Video     *util.VideoInfo `json:"video,omitempty"`
}

type MediaService struct {
	Storage  *StorageService
	MaxBytes int64
}

func NewMediaService(storage *StorageService, maxUploadMB int64) *MediaService {
	if maxUploadMB <= 0 {
		maxUploadMB = 200
	}
	return &MediaService{Storage: storage, MaxBytes: maxUploadMB << 20}
}

func objectKey(kind, ext string) string {
	return path.Join("courses", kind, time.Now().Format("2006/01"), uuid.New().String()+ext)
}

// Upload 根据文件头识别类型；视频会额外探测时长并截取封面，探测失败只记录日志
func (s *MediaService) Upload(ctx context.Context, header *multipart.FileHeader) (*MediaAsset, error) {
	if header.Size > s.MaxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d MB", util.ErrInvalidUpload, s.MaxBytes>>20)
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mimeType, err := util.SniffMimeType(file, []string{util.MimeImage, util.MimeVideo})
	if err != nil {
		return nil, err
	}
	if !util.AllowedExtension(header.Filename, mimeType) {
		return nil, fmt.Errorf("%w: extension does not match %s", util.ErrInvalidUpload, mimeType)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if util.IsImage(mimeType) {
		url, err := s.Storage.Upload(ctx, objectKey("images", ext), file, header.Size, mimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
		}
		return &MediaAsset{URL: url, Kind: "image", MimeType: mimeType, Size: header.Size}, nil
	}

	return s.uploadVideo(ctx, file, header.Size, ext, mimeType)
}

func (s *MediaService) uploadVideo(ctx context.Context, file io.Reader, size int64, ext, mimeType string) (*MediaAsset, error) {
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	asset := &MediaAsset{Kind: "video", MimeType: mimeType, Size: size}

	key := objectKey("videos", ext)
	url, err := s.Storage.UploadFile(ctx, key, tmp.Name(), mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}
	asset.URL = url

	_, span := tracing.StartSpan(ctx, "media.probe", attribute.String("media.key", key))
	info, err := util.ProbeVideo(tmp.Name())
	span.End()
	if err != nil {
		logger.Log.Warn("Video probe failed", zap.String("key", key), zap.Error(err))
		return asset, nil
	}
	asset.Video = info
	asset.Duration = util.FormatDuration(info.Duration)

	offset := "00:00:01"
	if info.Duration < 2 {
		offset = "00:00:00"
	}
	poster := strings.TrimSuffix(tmp.Name(), ext) + ".jpg"
	defer os.Remove(poster)
	if err := util.ExtractPoster(tmp.Name(), poster, offset); err != nil {
		logger.Log.Warn("Poster extraction failed", zap.String("key", key), zap.Error(err))
		return asset, nil
	}
	posterURL, err := s.Storage.UploadFile(ctx, strings.TrimSuffix(key, ext)+".jpg", poster, "image/jpeg")
	if err != nil {
		logger.Log.Warn("Poster upload failed", zap.String("key", key), zap.Error(err))
		return asset, nil
	}
	asset.PosterURL = posterURL
	return asset, nil
}

// Delete 删除已上传的媒体，视频一并删除同名封面
func (s *MediaService) Delete(ctx context.Context, url string) error {
	key, ok := s.Storage.KeyFromURL(url)
	if !ok {
		return fmt.Errorf("%w: unknown media url", util.ErrInvalidUpload)
	}
	if err := s.Storage.Delete(ctx, key); err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", util.ErrPersistence, err)
	}

	ext := path.Ext(key)
	if strings.HasPrefix(key, "courses/videos/") && ext != "" {
		poster := strings.TrimSuffix(key, ext) + ".jpg"
		if err := s.Storage.Delete(ctx, poster); err != nil && !errors.Is(err, util.ErrNotFound) {
			logger.Log.Warn("Poster delete failed", zap.String("key", poster), zap.Error(err))
		}
	}
	logger.Log.Info("Media deleted", zap.String("key", key))
	return nil
}
