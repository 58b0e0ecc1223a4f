package jobs

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	xlsxMIMEType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	downloadFilename = "AI_Resumes_Extract.xlsx"
)

// UploadHandler は POST / のハンドラーを返します。
// 受理されるとジョブIDを返し、処理はバックグラウンドで行われます。
func UploadHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "multipart/form-data でファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		headers := form.File["file"]
		if len(headers) == 0 {
			headers = form.File["file[]"]
		}
		if len(headers) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "アップロードされたファイルが見つかりません。",
			})
			return
		}

		uploads, err := readUploads(headers, m.cfg.MaxFileSize)
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) {
				respondWithError(c, err)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "アップロードされたファイルの読み込みに失敗しました。",
			})
			return
		}

		jobID, err := m.Submit(c.Request.Context(), uploads)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"success": true,
			"job_id":  jobID,
		})
	}
}

// StatusHandler は GET /status/:jobId のハンドラーを返します。
func StatusHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("jobId"))
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "jobId を指定してください。",
			})
			return
		}

		info, err := m.Poll(c.Request.Context(), jobID)
		if err != nil {
			respondWithError(c, err)
			return
		}

		switch info.Status {
		case StatusComplete:
			c.JSON(http.StatusOK, gin.H{
				"status":       string(StatusComplete),
				"download_url": info.DownloadURL,
			})
		case StatusFailed:
			c.JSON(http.StatusOK, gin.H{
				"status": string(StatusFailed),
				"error":  info.Error,
			})
		default:
			c.JSON(http.StatusOK, gin.H{
				"status": string(StatusPending),
			})
		}
	}
}

// DownloadHandler は GET /download/:jobId のハンドラーを返します。
// 取得と同時に結果キーを削除するため、ダウンロードは一度しか成功しません。
// 成果物が無い・失敗済みの場合は再投入のためトップへリダイレクトします。
func DownloadHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("jobId"))
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "jobId を指定してください。",
			})
			return
		}

		data, err := m.Retrieve(c.Request.Context(), jobID)
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) &&
				(apiErr.Code == CodeResultNotFound || apiErr.Code == CodeJobFailed) {
				c.Redirect(http.StatusSeeOther, "/")
				return
			}
			respondWithError(c, err)
			return
		}

		encodedName := url.PathEscape(downloadFilename)
		c.Header("Content-Disposition",
			fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", downloadFilename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", jobID)
		c.Data(http.StatusOK, xlsxMIMEType, data)
	}
}

// readUploads は各パートをメモリに読み込みます。サイズ超過のパートは
// 読み込む前に弾き、アップロード全体を 413 で失敗させます。
func readUploads(headers []*multipart.FileHeader, maxSize int64) ([]Upload, error) {
	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		if fh.Size > maxSize {
			return nil, newError(CodePayloadTooLarge,
				fmt.Sprintf("ファイル '%s' が大きすぎます。最大 %dMB です。", fh.Filename, maxSize/1_000_000), nil)
		}
		file, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, Upload{Filename: fh.Filename, Data: data})
	}
	return uploads, nil
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "サーバー内部でエラーが発生しました。",
		})
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Code {
	case CodeInvalidInput:
		status = http.StatusBadRequest
	case CodePayloadTooLarge:
		status = http.StatusRequestEntityTooLarge
	case CodeResultNotFound:
		status = http.StatusNotFound
	case CodeJobFailed:
		status = http.StatusGone
	}
	c.JSON(status, gin.H{"error": apiErr.Message})
}
