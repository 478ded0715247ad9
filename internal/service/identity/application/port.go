// internal/service/identity/application/port.go
package application

import "mime/multipart"

// ImageStore 保存上传的头像并返回公开路径
type ImageStore interface {
	Save(category string, fh *multipart.FileHeader) (string, error)
	Remove(publicPath string) error
}
