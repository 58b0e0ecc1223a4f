// Package jobs は履歴書処理ジョブの投入・実行・結果受け渡しを管理します。
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/yourusername/resume-forge/internal/blob"
	"github.com/yourusername/resume-forge/internal/config"
	"github.com/yourusername/resume-forge/internal/resume"
)

const (
	taskTypeResume = "resume:process"
	queueName      = "resumes"
)

// Processor は1ファイル分の抽出パイプラインを実行します。
type Processor interface {
	Process(ctx context.Context, filename string, data []byte) (*resume.Profile, error)
}

// taskEnqueuer は asynq.Client のうちManagerが使う操作です。
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// taskInspector は asynq.Inspector のうちManagerが使う操作です。
type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	Close() error
}

// Manager はジョブの投入、状態照会、結果の一度きりの受け渡し、
// およびワーカーとしてのジョブ実行を担います。
type Manager struct {
	cfg       *config.Config
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	enqueuer  taskEnqueuer
	inspector taskInspector
	store     blob.Store
	processor Processor
	builder   func([]resume.Profile) ([]byte, error)
	logger    *zap.Logger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, store blob.Store, processor Processor, logger *zap.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if processor == nil {
		return nil, errors.New("processor is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:       cfg,
		client:    client,
		server:    server,
		mux:       mux,
		enqueuer:  client,
		inspector: asynq.NewInspector(opt),
		store:     store,
		processor: processor,
		builder:   resume.BuildWorkbook,
		logger:    logger,
	}
	mux.HandleFunc(taskTypeResume, manager.handleResumeTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Error("asynq server stopped with error", zap.Error(err))
		}
	}()
}

// RunWorkers は Asynq サーバーをフォアグラウンドで起動します（専用ワーカープロセス用）。
func (m *Manager) RunWorkers() error {
	return m.server.Run(m.mux)
}

// Shutdown はサーバー、クライアント、インスペクターを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.server != nil {
		m.server.Shutdown()
	}
	var errs []error
	if m.client != nil {
		errs = append(errs, m.client.Close())
	}
	if m.inspector != nil {
		errs = append(errs, m.inspector.Close())
	}
	return errors.Join(errs...)
}

// Submit はアップロードされたファイル群から1ジョブを作成します。
// 受理できないファイルはバッチから除外し、1件も残らなければ投入全体を失敗させます。
// Blob書き込みは単一のアトミックなバッチで行い、成功した場合のみキューに投入します。
func (m *Manager) Submit(ctx context.Context, uploads []Upload) (string, error) {
	if len(uploads) == 0 {
		return "", newError(CodeInvalidInput, "ファイルが選択されていません。", nil)
	}

	jobID := uuid.NewString()
	entries := make([]blob.Entry, 0, len(uploads))
	files := make(map[string]string, len(uploads))

	for _, up := range uploads {
		filename := filepath.Base(up.Filename)
		if !acceptUpload(filename, up.Data) {
			m.logger.Info("rejecting file from batch",
				zap.String("job_id", jobID),
				zap.String("filename", filename),
			)
			continue
		}
		if int64(len(up.Data)) > m.cfg.MaxFileSize {
			return "", newError(CodePayloadTooLarge,
				fmt.Sprintf("ファイル '%s' が大きすぎます。最大 %dMB です。", filename, m.cfg.MaxFileSize/1_000_000), nil)
		}

		key := blob.FileKey(jobID)
		entries = append(entries, blob.Entry{Key: key, Data: up.Data})
		files[key] = filename
	}

	if len(entries) == 0 {
		return "", newError(CodeInvalidInput, "有効な .pdf / .docx ファイルが見つかりません。", nil)
	}

	if err := m.store.SetMulti(ctx, entries, m.cfg.BlobTTL); err != nil {
		return "", newError(CodeStorageError, "ファイルの保存に失敗しました。ストレージ接続を確認してください。", err)
	}

	body, err := json.Marshal(&TaskPayload{JobID: jobID, Files: files})
	if err != nil {
		return "", newError(CodeQueueError, "ジョブの作成に失敗しました。", err)
	}

	task := asynq.NewTask(taskTypeResume, body, asynq.Queue(queueName))
	_, err = m.enqueuer.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.MaxRetry(0),
		asynq.Timeout(m.cfg.JobTimeout),
	)
	if err != nil {
		// 入力が不完全なジョブを残さないよう、書き込んだBlobはベストエフォートで削除する
		keys := make([]string, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, e.Key)
		}
		if delErr := m.store.Delete(ctx, keys...); delErr != nil {
			m.logger.Warn("failed to clean up input blobs after enqueue failure",
				zap.String("job_id", jobID),
				zap.Error(delErr),
			)
		}
		return "", newError(CodeQueueError, "ジョブの投入に失敗しました。", err)
	}

	m.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.Int("files", len(entries)),
	)
	return jobID, nil
}

// Poll はジョブの状態を返します。結果キーの存在が唯一の完了シグナルで、
// 結果が無い場合のみキュー側の失敗（アーカイブ済み）を確認します。
// キューがジョブを見つけられない場合は pending として扱います。
func (m *Manager) Poll(ctx context.Context, jobID string) (*StatusInfo, error) {
	data, err := m.store.Get(ctx, blob.ResultKey(jobID))
	if err != nil {
		return nil, newError(CodeStorageError, "ジョブ情報の取得に失敗しました。", err)
	}

	if data != nil {
		if bytes.HasPrefix(data, []byte(errSentinel)) {
			return &StatusInfo{Status: StatusFailed, Error: string(data)}, nil
		}
		return &StatusInfo{
			Status:      StatusComplete,
			DownloadURL: fmt.Sprintf("/download/%s", jobID),
		}, nil
	}

	info, err := m.inspector.GetTaskInfo(queueName, jobID)
	if err != nil {
		// 未登録・バックエンド不達はポーリングを失敗させず pending で返す
		return &StatusInfo{Status: StatusPending}, nil
	}
	if info.State == asynq.TaskStateArchived {
		return &StatusInfo{Status: StatusFailed, Error: "Job failed during processing."}, nil
	}
	return &StatusInfo{Status: StatusPending}, nil
}

// Retrieve は結果を取得し、同時に削除します（at-most-once）。
// 2回目の取得は必ず失敗します。削除後にクライアント側の転送が途切れた場合、
// 成果物は失われ再投入が必要になります。これは意図した挙動です。
// 失敗レコードはダウンロード試行では消費しません。
func (m *Manager) Retrieve(ctx context.Context, jobID string) ([]byte, error) {
	key := blob.ResultKey(jobID)

	data, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, newError(CodeStorageError, "ジョブの成果物取得に失敗しました。", err)
	}
	if data == nil {
		return nil, newError(CodeResultNotFound, "ジョブの成果物が見つかりませんでした。", nil)
	}
	if bytes.HasPrefix(data, []byte(errSentinel)) {
		return nil, newError(CodeJobFailed, string(data), nil)
	}

	claimed, err := m.store.GetDel(ctx, key)
	if err != nil {
		return nil, newError(CodeStorageError, "ジョブの成果物取得に失敗しました。", err)
	}
	if claimed == nil || bytes.HasPrefix(claimed, []byte(errSentinel)) {
		// 直前に他のリクエストが取得済み
		return nil, newError(CodeResultNotFound, "ジョブの成果物が見つかりませんでした。", nil)
	}

	m.logger.Info("result delivered", zap.String("job_id", jobID))
	return claimed, nil
}

// acceptUpload は拡張子と先頭バイトの両方でファイルを検証します。
// DOCXは最小構成だと application/zip と判定されるため、ZIPも許容します。
func acceptUpload(filename string, data []byte) bool {
	if !resume.AcceptedExtension(filename) {
		return false
	}
	if len(data) == 0 {
		return false
	}
	mime := mimetype.Detect(data)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return mime.Is("application/pdf")
	case ".docx":
		return mime.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document") ||
			mime.Is("application/zip")
	}
	return false
}
