// internal/service/catalog/application/port.go
package application

import (
	"context"
	"mime/multipart"
)

// CapacityManager 是预订模块提供的容量变更入口
type CapacityManager interface {
	ResizeTour(ctx context.Context, tourID int64, totalSlots int) error
}

// ImageStore 保存上传的图片并返回公开路径
type ImageStore interface {
	Save(category string, fh *multipart.FileHeader) (string, error)
	Remove(publicPath string) error
}
