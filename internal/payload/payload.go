// Package payload 实现客户端约定的传输编码
// 牌组提交和拉取的消息体统一为 base64(gzip(json)) 形式
package payload

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// 解压后数据的大小上限，防止恶意构造的压缩炸弹
const maxDecodedSize = 256 * 1024 * 1024

// Encode 将对象编码为base64(gzip(json))字符串
func Encode(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	compressed, err := Compress(raw)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(compressed), nil
}

// Decode 将base64(gzip(json))字符串解码到目标对象
func Decode(data []byte, v interface{}) error {
	compressed, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("failed to decode base64 payload: %w", err)
	}

	raw, err := Decompress(compressed)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// Compress 对数据做gzip压缩
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress 对gzip数据解压，超过大小上限时报错
func Decompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip payload: %w", err)
	}
	defer gr.Close()

	raw, err := io.ReadAll(io.LimitReader(gr, maxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	if len(raw) > maxDecodedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecodedSize)
	}
	return raw, nil
}

// CompressJSON 将对象序列化并gzip压缩，用于数据库内的牌组存储
func CompressJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return Compress(raw)
}

// DecompressJSON 将gzip压缩的JSON解压并反序列化
func DecompressJSON(data []byte, v interface{}) error {
	raw, err := Decompress(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
