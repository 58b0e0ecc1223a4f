// Package resume は履歴書ファイルからの情報抽出とスプレッドシート生成を提供します。
package resume

import "fmt"

// Experience は職歴1件を表します。
type Experience struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Duration string `json:"duration"`
}

// Education は学歴1件を表します。
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
}

// Profile は1ファイル分の構造化抽出結果です。
// AIが返さなかったフィールドは欠損ではなくゼロ値のまま扱います。
type Profile struct {
	Filename   string       `json:"filename,omitempty"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone"`
	Summary    string       `json:"summary"`
	Skills     []string     `json:"skills,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Education  []Education  `json:"education,omitempty"`
}

// ErrorProfile はファイル処理失敗時に成果物へ残すプレースホルダーを作ります。
// 失敗したファイルも行として現れるため、成果物の行数は常に入力ファイル数と一致します。
func ErrorProfile(filename string, cause error) Profile {
	summary := ""
	if cause != nil {
		summary = cause.Error()
	}
	return Profile{
		Filename: filename,
		Name:     fmt.Sprintf("Error processing %s", filename),
		Summary:  summary,
	}
}
