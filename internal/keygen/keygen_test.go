package keygen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewDeckHash 测试牌组哈希生成
func TestNewDeckHash(t *testing.T) {
	t.Run("生成的哈希合法", func(t *testing.T) {
		hash := NewDeckHash()
		assert.True(t, IsValidDeckHash(hash))
	})

	t.Run("连续生成不重复", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			hash := NewDeckHash()
			assert.False(t, seen[hash], "生成了重复的牌组哈希: %s", hash)
			seen[hash] = true
		}
	})
}

// TestContentHash 测试内容哈希
func TestContentHash(t *testing.T) {
	t.Run("相同输入产生相同哈希", func(t *testing.T) {
		assert.Equal(t, ContentHash([]byte("deck content")), ContentHash([]byte("deck content")))
	})

	t.Run("不同输入产生不同哈希", func(t *testing.T) {
		assert.NotEqual(t, ContentHash([]byte("deck a")), ContentHash([]byte("deck b")))
	})

	t.Run("生成的哈希通过校验", func(t *testing.T) {
		hash := ContentHash([]byte("anything"))
		assert.Len(t, hash, 64)
		assert.True(t, IsValidContentHash(hash))
	})
}

// TestIsValidContentHash 测试内容哈希校验
func TestIsValidContentHash(t *testing.T) {
	assert.True(t, IsValidContentHash("d2a84f4b8b650937ec8f73cd8be2c74add5a911ba64df27458ed8229da804a26"))
	assert.True(t, IsValidContentHash("9e107d9d372bb6826bd81d3542a419d6"))
	assert.False(t, IsValidContentHash(""))
	assert.False(t, IsValidContentHash("short"))
	assert.False(t, IsValidContentHash("zzzz4f4b8b650937ec8f73cd8be2c74add5a911ba64df27458ed8229da804a26"))
}

// TestIsValidDeckHash 测试牌组哈希校验
func TestIsValidDeckHash(t *testing.T) {
	assert.True(t, IsValidDeckHash("maple-river-quartz-wren"))
	assert.True(t, IsValidDeckHash("0b0ec80e-5819-4b92-9fe8-86a87f1b2c45"))
	assert.False(t, IsValidDeckHash(""))
	assert.False(t, IsValidDeckHash("maple--river"))
	assert.False(t, IsValidDeckHash("Maple-River"))
}

// TestStorageKey 测试对象键构造
func TestStorageKey(t *testing.T) {
	assert.Equal(t, "media/abc123", StorageKey("media", "abc123"))
	assert.Equal(t, "media/abc123", StorageKey("/media/", "abc123"))
	assert.Equal(t, "abc123", StorageKey("", "abc123"))
}

// TestTokenGeneration 测试令牌和用户哈希生成
func TestTokenGeneration(t *testing.T) {
	assert.NotEqual(t, NewToken(), NewToken())
	assert.NotEqual(t, NewUserHash(), NewUserHash())
	assert.True(t, IsValidContentHash(NewUserHash()))
}
