package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoInfo 视频元数据
type VideoInfo struct {
	Duration float64 `json:"duration"` // 秒
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Format   string  `json:"format"`
	Size     int64   `json:"size"`
}

// ProbeVideo 通过 ffprobe 读取视频元数据
func ProbeVideo(videoPath string) (*VideoInfo, error) {
	fileInfo, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("video file not found: %w", err)
	}

	jsonOutput, err := ffmpeg.Probe(videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe video: %w", err)
	}

	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
			Size     string `json:"size"`
			Format   string `json:"format_name"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("decode probe output: %w", err)
	}

	info := &VideoInfo{Format: "unknown", Size: fileInfo.Size()}
	for _, stream := range result.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}
	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if s, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.Size = s
	}
	if parts := strings.Split(result.Format.Format, ","); parts[0] != "" {
		info.Format = parts[0]
	}
	return info, nil
}

// ExtractPoster 抓取视频指定时间点的一帧作为封面
func ExtractPoster(videoPath, posterPath, offset string) error {
	if err := os.MkdirAll(filepath.Dir(posterPath), 0755); err != nil {
		return fmt.Errorf("create poster dir: %w", err)
	}

	return ffmpeg.Input(videoPath, ffmpeg.KwArgs{
		"ss": offset,
	}).
		Output(posterPath, ffmpeg.KwArgs{
			"vframes": "1",
			"q:v":     "2",
		}).
		OverWriteOutput().
		Run()
}

// FormatDuration 转为课时展示用的 "12 min" 形式
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	minutes := int(seconds+59) / 60
	return fmt.Sprintf("%d min", minutes)
}
