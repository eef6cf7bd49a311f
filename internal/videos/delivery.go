package videos

import "github.com/labstack/echo/v4"

type Handlers interface {
	UploadVideo() echo.HandlerFunc
	GetAssetByID() echo.HandlerFunc
	ListAssets() echo.HandlerFunc
	DeleteAsset() echo.HandlerFunc
	GetJobStatus() echo.HandlerFunc
}
