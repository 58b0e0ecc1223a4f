package jobs

// Status はポーリングで返すジョブの状態です。
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// errSentinel は結果レコードが失敗を表すことを示すプレフィックスです。
// XLSXのバイナリ（PKヘッダー）とは先頭バイトで区別できます。
const errSentinel = "error:"

// TaskPayload は履歴書処理ジョブのペイロードです。
// Files はBlobキーから元のファイル名へのマッピングで、順序は持ちません。
type TaskPayload struct {
	JobID string            `json:"jobId"`
	Files map[string]string `json:"files"`
}

// Upload はクライアントから受け取った1ファイルを表します。
type Upload struct {
	Filename string
	Data     []byte
}

// StatusInfo はポーリング結果です。
type StatusInfo struct {
	Status      Status `json:"status"`
	DownloadURL string `json:"download_url,omitempty"`
	Error       string `json:"error,omitempty"`
}
