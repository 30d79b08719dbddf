// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力する自由記述（氏名、会議室名、設備名）から
// マークアップを除去し、プレーンテキストとして保存できる形に整える。
// bluemondayのStrictPolicyで全てのタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は自由記述テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Clean は全てのHTMLタグを除去し、連続する空白を1つにまとめて前後を切り詰める。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Clean(raw string) string

	// CleanList は各要素をCleanし、空文字列と重複を取り除く。順序は最初の出現順を保つ。
	CleanList(raw []string) []string
}

// maxCleanPasses は実体参照を多重にエンコードした入力を展開する上限。
const maxCleanPasses = 8

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはゴルーチン間で共有して安全に使える。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean は全てのHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyは & などを実体参照にするため保存用に戻すが、
// &lt;b&gt; のようなエンコード済みタグが生きたタグに戻らないよう、
// 出力が変わらなくなるまで除去と展開を繰り返す。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	for i := 0; i < maxCleanPasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.Join(strings.Fields(text), " ")
		}
		text = next
	}
	// 収束しない入力は山括弧を落としてタグとして解釈できなくする
	text = strings.NewReplacer("<", "", ">", "").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// CleanList は各要素をCleanし、空文字列と重複を取り除く。
func (s *textSanitizer) CleanList(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		v := s.Clean(r)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
