package resume

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Excelに書き込めない制御文字・私用領域の文字を除去する
var illegalCharRE = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x{7F}-\x{9F}\x{E000}-\x{F8FF}]`)

// AcceptedExtension は処理対象の拡張子かどうかを判定します。
func AcceptedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx":
		return true
	}
	return false
}

// ExtractText はファイル形式に応じたテキスト抽出を行います。
// 抽出に失敗した場合はエラーではなく空文字列を返します（fail closed）。
func ExtractText(filename string, data []byte) string {
	var text string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text = extractPDFText(data)
	case ".docx":
		text = extractDOCXText(data)
	}
	return cleanText(text)
}

func cleanText(text string) string {
	return illegalCharRE.ReplaceAllString(text, "")
}
