package resume

import (
	"bytes"
	"io"
	"strings"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// extractPDFText はpdfcpuでページのコンテンツストリームを取り出し、
// テキスト表示オペレーターから文字列を復元します。
// 破損したPDFや読み取れないPDFは空文字列になります。
func extractPDFText(data []byte) string {
	pdfCtx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(data), nil)
	if err != nil {
		return ""
	}

	var sb strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		reader, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil || reader == nil {
			continue
		}
		content, err := io.ReadAll(reader)
		if err != nil {
			continue
		}
		sb.WriteString(decodeTextOperators(content))
		sb.WriteString("\n")
	}
	return sb.String()
}

// decodeTextOperators はコンテンツストリームから Tj / TJ / ' / " で表示される
// リテラル文字列と16進文字列を順に取り出します。構造の完全な解釈はしません。
func decodeTextOperators(content []byte) string {
	var sb strings.Builder
	i := 0
	for i < len(content) {
		switch content[i] {
		case '(':
			str, next := readLiteralString(content, i)
			sb.WriteString(str)
			i = next
		case '<':
			if i+1 < len(content) && content[i+1] == '<' {
				i += 2 // 辞書の開始はスキップ
				continue
			}
			str, next := readHexString(content, i)
			sb.WriteString(str)
			i = next
		default:
			if isOperatorChar(content[i]) {
				op, next := readToken(content, i)
				switch op {
				case "Tj", "TJ":
					sb.WriteString(" ")
				case "Td", "TD", "T*", "'", "\"", "ET":
					sb.WriteString("\n")
				}
				i = next
				continue
			}
			i++
		}
	}
	return sb.String()
}

func readLiteralString(content []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				sb.WriteString(unescapeChar(content[i+1]))
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte('(')
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(')')
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

func unescapeChar(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r', 'b', 'f':
		return ""
	case '(', ')', '\\':
		return string(c)
	}
	// 8進表記などは無視する
	return ""
}

func readHexString(content []byte, start int) (string, int) {
	i := start + 1
	var hexDigits []byte
	for i < len(content) && content[i] != '>' {
		c := content[i]
		if isHexDigit(c) {
			hexDigits = append(hexDigits, c)
		}
		i++
	}
	if i < len(content) {
		i++ // '>' を消費
	}
	var sb strings.Builder
	for j := 0; j+1 < len(hexDigits); j += 2 {
		b := hexValue(hexDigits[j])<<4 | hexValue(hexDigits[j+1])
		// カスタムエンコーディングのバイト列は可読文字のみ残す
		if b >= 0x20 && b < 0x7F {
			sb.WriteByte(byte(b))
		}
	}
	return sb.String(), i
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

func isOperatorChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '\'' || c == '"' || c == '*'
}

func readToken(content []byte, start int) (string, int) {
	i := start
	for i < len(content) && isOperatorChar(content[i]) {
		i++
	}
	return string(content[start:i]), i
}
