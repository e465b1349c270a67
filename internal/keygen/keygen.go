// Package keygen 提供牌组哈希和内容哈希的生成工具
// 牌组哈希采用人类可读的单词串形式，便于口头传播和手动输入
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// 牌组哈希的单词数量
const deckHashWords = 4

// wordList 牌组哈希使用的单词表
// 只使用小写短单词，避免拼写混淆
var wordList = []string{
	"apple", "arrow", "basil", "beach", "berry", "birch", "blaze", "bloom",
	"brave", "brick", "brook", "candy", "cedar", "chalk", "charm", "cloud",
	"coral", "crane", "creek", "crisp", "daisy", "dance", "delta", "drift",
	"eagle", "ember", "fable", "feather", "fern", "field", "flame", "flint",
	"frost", "gem", "glade", "grape", "grove", "harbor", "hazel", "holly",
	"honey", "iris", "ivory", "jade", "juniper", "koala", "lagoon", "lark",
	"lemon", "lilac", "lotus", "maple", "meadow", "mint", "misty", "moss",
	"north", "oak", "ocean", "olive", "opal", "orchid", "otter", "pearl",
	"pebble", "pine", "plum", "pond", "poppy", "prism", "quartz", "quill",
	"rain", "raven", "reef", "ridge", "river", "robin", "rose", "sage",
	"shell", "silver", "sky", "slate", "snow", "spark", "spring", "spruce",
	"star", "stone", "storm", "summit", "sunny", "swan", "thyme", "tide",
	"topaz", "trail", "tulip", "valley", "violet", "willow", "wren", "zephyr",
}

// NewDeckHash 生成新的牌组哈希（订阅键）
// 形如 maple-river-quartz-wren，随机性不足时回退为UUID
func NewDeckHash() string {
	words := make([]string, 0, deckHashWords)
	max := big.NewInt(int64(len(wordList)))
	for i := 0; i < deckHashWords; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// 随机源不可用时回退为UUID，保证键仍然唯一
			return uuid.New().String()
		}
		words = append(words, wordList[n.Int64()])
	}
	return strings.Join(words, "-")
}

// NewUserHash 生成新的匿名用户哈希
// 以UUID为输入做SHA256，对外不暴露任何用户信息
func NewUserHash() string {
	return ContentHash([]byte(uuid.New().String()))
}

// NewToken 生成新的认证令牌
func NewToken() string {
	return ContentHash([]byte(uuid.New().String() + uuid.New().String()))
}

// ContentHash 计算数据的SHA256哈希值
// 返回64位十六进制字符串，用于牌组内容去重
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsValidContentHash 检查字符串是否为合法的内容哈希
// 接受32位（MD5形）和64位（SHA256形）十六进制字符串
func IsValidContentHash(s string) bool {
	if len(s) != 32 && len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// IsValidDeckHash 检查字符串是否为合法的牌组哈希
// 接受单词串形式和UUID回退形式
func IsValidDeckHash(s string) bool {
	if s == "" || len(s) > 100 {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	for _, part := range strings.Split(s, "-") {
		if part == "" {
			return false
		}
		for _, r := range part {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return false
			}
		}
	}
	return true
}

// StorageKey 根据键前缀和内容哈希构造对象存储键名
func StorageKey(prefix, contentHash string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return contentHash
	}
	return fmt.Sprintf("%s/%s", prefix, contentHash)
}
