package resume

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNoText はファイルからテキストを取り出せなかったことを示します。
// この場合ファイルは成果物に行を残さず読み飛ばされます。
var ErrNoText = errors.New("no text could be extracted")

// Extractor はテキストから構造化プロフィールを取り出すAI呼び出しを抽象化します。
type Extractor interface {
	Extract(ctx context.Context, text string) (*Profile, error)
}

// Service は1ファイル分の抽出パイプライン（テキスト抽出 → AI正規化）を実行します。
type Service struct {
	extractor Extractor
	logger    *zap.Logger
}

// NewService は Service を作成します。
func NewService(extractor Extractor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		logger:    logger,
	}
}

// Process はファイルのバイト列からプロフィールを生成します。
// テキストが取り出せない場合は ErrNoText を返し、呼び出し側が読み飛ばします。
// AI 呼び出しが失敗した場合は通常のエラーを返し、プレースホルダー行になります。
func (s *Service) Process(ctx context.Context, filename string, data []byte) (*Profile, error) {
	text := ExtractText(filename, data)
	if text == "" {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoText)
	}

	s.logger.Debug("extracted resume text",
		zap.String("filename", filename),
		zap.Int("chars", len(text)),
	)

	profile, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("structured extraction for %s: %w", filename, err)
	}

	profile.Filename = filename
	return profile, nil
}
