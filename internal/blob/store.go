// Package blob はTTL付きバイナリペイロードのキー／バリューストアを提供します。
// アップロードされた履歴書ファイルとジョブ結果の受け渡しに使用します。
package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry は一括書き込み用のキーとペイロードの組です。
type Entry struct {
	Key  string
	Data []byte
}

// Store はBlobストアの操作を定義します。
// Get / GetDel はキーが存在しない場合 (nil, nil) を返します。
type Store interface {
	// Set はキーにペイロードをTTL付きで保存します。
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// SetMulti は複数エントリを単一のアトミックなバッチとして保存します。
	// 途中で失敗した場合、呼び出し側は投入全体を失敗として扱う必要があります。
	SetMulti(ctx context.Context, entries []Entry, ttl time.Duration) error
	// Get はキーのペイロードを取得します。
	Get(ctx context.Context, key string) ([]byte, error)
	// GetDel はペイロードの取得と削除をアトミックに行います（一度きりの受け渡し用）。
	GetDel(ctx context.Context, key string) ([]byte, error)
	// Delete は複数キーを削除します。存在しないキーは無視されます。
	Delete(ctx context.Context, keys ...string) error
}

// FileKey はジョブ入力ファイル用のキーを生成します。
// ランダムサフィックスにより同名ファイルの衝突を避けます。
func FileKey(jobID string) string {
	return fmt.Sprintf("job:%s:file:%s", jobID, uuid.NewString())
}

// ResultKey はジョブ結果用のキーを返します。
// このキーの存在がジョブ完了の唯一のシグナルです。
func ResultKey(jobID string) string {
	return fmt.Sprintf("job:%s:result", jobID)
}
