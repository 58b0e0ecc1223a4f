package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/resume-forge/internal/blob"
	"github.com/yourusername/resume-forge/internal/metrics"
	"github.com/yourusername/resume-forge/internal/resume"
)

// handleResumeTask はワーカーとして1ジョブを処理します。
// 結果レコード（成功またはエラー）を書き込めた場合は nil を返します。
// レコードを一切残せなかった場合のみエラーを返し、キュー側の failed 状態を
// ポーリングの第二の発見経路として使います。
func (m *Manager) handleResumeTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}
	return m.runJob(ctx, &payload)
}

type inputFile struct {
	key      string
	filename string
}

func (m *Manager) runJob(ctx context.Context, payload *TaskPayload) (err error) {
	start := time.Now()
	jobID := payload.JobID
	logger := m.logger.With(zap.String("job_id", jobID))
	logger.Info("worker starting job", zap.Int("files", len(payload.Files)))

	inputs := sortedInputs(payload.Files)

	// タイムアウトでctxが打ち切られてもクリーンアップと結果書き込みは完了させる
	cleanupCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panicked", zap.Any("panic", r))
			err = m.writeErrorRecord(cleanupCtx, jobID, fmt.Sprintf("%s %v", errSentinel, r))
			metrics.JobsTotal.WithLabelValues("failed").Inc()
		}
		m.deleteInputs(cleanupCtx, jobID, inputs)
		metrics.JobDuration.Observe(time.Since(start).Seconds())
	}()

	profiles := m.processFiles(ctx, jobID, inputs)

	if len(profiles) == 0 {
		logger.Warn("job produced no profiles")
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return m.writeErrorRecord(cleanupCtx, jobID, errSentinel+" no data processed")
	}

	artifact, buildErr := m.builder(profiles)
	if buildErr != nil {
		logger.Error("failed to build workbook", zap.Error(buildErr))
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return m.writeErrorRecord(cleanupCtx, jobID, fmt.Sprintf("%s %v", errSentinel, buildErr))
	}

	if setErr := m.store.Set(cleanupCtx, blob.ResultKey(jobID), artifact, m.cfg.BlobTTL); setErr != nil {
		logger.Error("failed to store result", zap.Error(setErr))
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return setErr
	}

	logger.Info("worker finished job",
		zap.Int("profiles", len(profiles)),
		zap.Int("artifact_bytes", len(artifact)),
		zap.Duration("elapsed", time.Since(start)),
	)
	metrics.JobsTotal.WithLabelValues("complete").Inc()
	return nil
}

// processFiles は各ファイルを独立に処理します。ファイル間の順序保証は不要なため
// 並列化しますが、成果物の行順はファイル名順で安定させます。
// 抽出失敗はプレースホルダー行に置き換え、Blobが消えていたファイルはスキップします。
func (m *Manager) processFiles(ctx context.Context, jobID string, inputs []inputFile) []resume.Profile {
	results := make([]*resume.Profile, len(inputs))

	g := new(errgroup.Group)
	g.SetLimit(m.fileParallelism())

	for i, in := range inputs {
		g.Go(func() error {
			results[i] = m.processOneFile(ctx, jobID, in)
			return nil
		})
	}
	_ = g.Wait()

	profiles := make([]resume.Profile, 0, len(inputs))
	for _, p := range results {
		if p != nil {
			profiles = append(profiles, *p)
		}
	}
	return profiles
}

func (m *Manager) processOneFile(ctx context.Context, jobID string, in inputFile) *resume.Profile {
	logger := m.logger.With(
		zap.String("job_id", jobID),
		zap.String("filename", in.filename),
	)

	data, err := m.store.Get(ctx, in.key)
	if err != nil || data == nil {
		// Blobが無いファイルはジョブを失敗させず読み飛ばす
		logger.Warn("input blob not readable, skipping file", zap.Error(err))
		metrics.FilesTotal.WithLabelValues("missing").Inc()
		return nil
	}

	profile, err := m.processor.Process(ctx, in.filename, data)
	if errors.Is(err, resume.ErrNoText) {
		// テキストが皆無のファイルは行を残さず読み飛ばす
		logger.Warn("no text extracted, skipping file")
		metrics.FilesTotal.WithLabelValues("empty").Inc()
		return nil
	}
	if err != nil {
		logger.Warn("file processing failed, recording placeholder", zap.Error(err))
		metrics.FilesTotal.WithLabelValues("error").Inc()
		placeholder := resume.ErrorProfile(in.filename, err)
		return &placeholder
	}

	metrics.FilesTotal.WithLabelValues("ok").Inc()
	return profile
}

// deleteInputs はジョブの入力Blobを無条件に削除します。失敗はログに残すだけです。
func (m *Manager) deleteInputs(ctx context.Context, jobID string, inputs []inputFile) {
	if len(inputs) == 0 {
		return
	}
	keys := make([]string, len(inputs))
	for i, in := range inputs {
		keys[i] = in.key
	}
	if err := m.store.Delete(ctx, keys...); err != nil {
		m.logger.Warn("failed to delete input blobs",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("cleaned up input blobs",
		zap.String("job_id", jobID),
		zap.Int("keys", len(keys)),
	)
}

// writeErrorRecord は失敗を表す結果レコードを書き込みます。
// 結果キーが存在しない限りポーリングは完了を報告できないため、ここが最後の砦です。
func (m *Manager) writeErrorRecord(ctx context.Context, jobID, message string) error {
	if err := m.store.Set(ctx, blob.ResultKey(jobID), []byte(message), m.cfg.BlobTTL); err != nil {
		m.logger.Error("failed to write error record",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (m *Manager) fileParallelism() int {
	if m.cfg.FileParallelism > 0 {
		return m.cfg.FileParallelism
	}
	return 1
}

func sortedInputs(files map[string]string) []inputFile {
	inputs := make([]inputFile, 0, len(files))
	for key, filename := range files {
		inputs = append(inputs, inputFile{key: key, filename: filename})
	}
	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].filename != inputs[j].filename {
			return inputs[i].filename < inputs[j].filename
		}
		return inputs[i].key < inputs[j].key
	})
	return inputs
}
