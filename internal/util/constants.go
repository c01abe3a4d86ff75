package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 文件上传相关常量
const (
	MimeVideo       = "video/"
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"
)

var (
	AllowedVideoExtensions = []string{".mp4", ".mov", ".webm", ".mkv"}
	AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)

// 消息推送事件类型
const (
	EventMessageCreated = "message.created"
	EventMessagesRead   = "messages.read"
	EventUnreadSync     = "unread.sync"
)
