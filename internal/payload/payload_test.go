package payload

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecode 测试传输编码往返
func TestEncodeDecode(t *testing.T) {
	t.Run("编码解码往返一致", func(t *testing.T) {
		original := map[string]interface{}{
			"name": "日语N2词汇",
			"notes": []interface{}{
				map[string]interface{}{"guid": "n1", "fields": []interface{}{"正面", "背面"}},
			},
		}

		encoded, err := Encode(original)
		require.NoError(t, err)
		assert.NotEmpty(t, encoded)

		var decoded map[string]interface{}
		require.NoError(t, Decode([]byte(encoded), &decoded))
		assert.Equal(t, "日语N2词汇", decoded["name"])
		assert.Len(t, decoded["notes"], 1)
	})

	t.Run("非base64输入报错", func(t *testing.T) {
		var out map[string]interface{}
		assert.Error(t, Decode([]byte("不是base64!!!"), &out))
	})

	t.Run("base64内不是gzip时报错", func(t *testing.T) {
		bogus := base64.StdEncoding.EncodeToString([]byte("plain text, not gzip"))
		var out map[string]interface{}
		assert.Error(t, Decode([]byte(bogus), &out))
	})
}

// TestCompressDecompress 测试gzip压缩往返
func TestCompressDecompress(t *testing.T) {
	t.Run("压缩解压往返一致", func(t *testing.T) {
		data := []byte(`{"deck":"解剖学基础","cards":120}`)

		compressed, err := Compress(data)
		require.NoError(t, err)
		assert.NotEqual(t, data, compressed)

		restored, err := Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, data, restored)
	})

	t.Run("损坏的压缩数据报错", func(t *testing.T) {
		_, err := Decompress([]byte{0x1f, 0x8b, 0xff, 0x00})
		assert.Error(t, err)
	})
}

// TestCompressJSON 测试数据库存储用的压缩序列化
func TestCompressJSON(t *testing.T) {
	type deckRecord struct {
		Name  string `json:"name"`
		Cards int    `json:"cards"`
	}

	compressed, err := CompressJSON(deckRecord{Name: "语法专项", Cards: 50})
	require.NoError(t, err)

	var restored deckRecord
	require.NoError(t, DecompressJSON(compressed, &restored))
	assert.Equal(t, "语法专项", restored.Name)
	assert.Equal(t, 50, restored.Cards)
}
