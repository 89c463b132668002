package documents

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/yieldnest/invest_api/services"
)

const certificateFolder = "investment_certificates"

type CloudinaryArchive struct {
	cld *cloudinary.Cloudinary
}

var _ services.FileArchive = (*CloudinaryArchive)(nil)

func NewCloudinaryArchive(url string) (*CloudinaryArchive, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &CloudinaryArchive{cld: cld}, nil
}

func (a *CloudinaryArchive) Upload(ctx context.Context, name string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("certificates/%s", name),
		Folder:       certificateFolder,
		ResourceType: "raw",
	}

	uploadResult, err := a.cld.Upload.Upload(ctx, bytes.NewReader(data), uploadParams)
	if err != nil {
		return "", err
	}
	if uploadResult.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", uploadResult.Error.Message)
	}
	return uploadResult.SecureURL, nil
}
