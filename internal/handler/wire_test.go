package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
	"github.com/ankicollab/collab-server/internal/payload"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
	deckservice "github.com/ankicollab/collab-server/internal/service/deck"
	mediaservice "github.com/ankicollab/collab-server/internal/service/media"
	suggestionservice "github.com/ankicollab/collab-server/internal/service/suggestion"
)

// stubMediaService 记录调用参数并返回固定结果的媒体服务替身
type stubMediaService struct {
	lastDeckHash    string
	lastUserID      uint
	lastFiles       []mediaservice.CheckFile
	lastBatchID     string
	lastConfirmed   []string
	checkResult     *mediaservice.CheckResult
	confirmResult   *mediaservice.ConfirmResult
	manifestEntries []mediaservice.ManifestEntry
}

func (s *stubMediaService) BulkCheck(deckHash string, userID uint,
	files []mediaservice.CheckFile) (*mediaservice.CheckResult, error) {
	s.lastDeckHash = deckHash
	s.lastUserID = userID
	s.lastFiles = files
	return s.checkResult, nil
}

func (s *stubMediaService) BulkConfirm(batchID string,
	confirmedHashes []string) (*mediaservice.ConfirmResult, error) {
	s.lastBatchID = batchID
	s.lastConfirmed = confirmedHashes
	return s.confirmResult, nil
}

func (s *stubMediaService) Manifest(deckHash string, filenames []string) ([]mediaservice.ManifestEntry, error) {
	s.lastDeckHash = deckHash
	return s.manifestEntries, nil
}

func (s *stubMediaService) ProxyUpload(batchID, contentHash string, reader io.Reader) error {
	return nil
}

func (s *stubMediaService) DetachDeck(deckID uint) error {
	return nil
}

func (s *stubMediaService) GetMediaStats() (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

// wireTestEnv 同步协议端点的集成测试环境
type wireTestEnv struct {
	engine      *gin.Engine
	db          *gorm.DB
	authService authservice.AuthService
	deckService deckservice.DeckService
	media       *stubMediaService
}

// setupWireEnv 搭建带真实服务和内存数据库的同步端点环境
func setupWireEnv(t *testing.T) *wireTestEnv {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&database.User{},
		&database.AuthToken{},
		&database.Deck{},
		&database.Subscription{},
		&database.ChangelogEntry{},
		&database.DeckStat{},
		&database.Suggestion{},
	))

	authService := authservice.NewAuthService(db, config.AuthConfig{
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 7200,
		BcryptCost:      4,
	})
	deckService := deckservice.NewDeckService(db)
	suggestionService := suggestionservice.NewSuggestionService(db, deckService, authService)
	media := &stubMediaService{
		checkResult: &mediaservice.CheckResult{
			BatchID:  "batch-test-1",
			Existing: []string{"hash-existing"},
			Uploads: []mediaservice.UploadTarget{
				{Hash: "hash-missing", Filename: "a.png", URL: "https://oss.example/put", Method: "PUT"},
			},
		},
		confirmResult: &mediaservice.ConfirmResult{Confirmed: []string{"hash-missing"}},
	}

	authHandler := NewAuthHandler(authService)
	deckHandler := NewDeckHandler(deckService, authService)
	suggestionHandler := NewSuggestionHandler(suggestionService)
	mediaHandler := NewMediaHandler(media, nil, authService)

	engine := gin.New()
	engine.POST("/login", authHandler.Login)
	engine.POST("/GetUserHashFromToken", authHandler.GetUserHashFromToken)
	engine.POST("/CheckUserToken", authHandler.CheckUserToken)
	engine.POST("/createDeck", deckHandler.CreateDeck)
	engine.POST("/pullChanges", deckHandler.PullChanges)
	engine.POST("/submitCard", suggestionHandler.SubmitCard)
	engine.POST("/media/check/bulk", mediaHandler.BulkCheck)
	engine.POST("/media/confirm/bulk", mediaHandler.BulkConfirm)
	engine.POST("/media/manifest", mediaHandler.Manifest)

	return &wireTestEnv{
		engine:      engine,
		db:          db,
		authService: authService,
		deckService: deckService,
		media:       media,
	}
}

// post 发送POST请求并返回响应
func (env *wireTestEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	require.NoError(t, err)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

// registerAndLogin 注册用户并返回访问令牌
func (env *wireTestEnv) registerAndLogin(t *testing.T, username string) (*database.User, string) {
	user, err := env.authService.Register(username, "password")
	require.NoError(t, err)
	pair, err := env.authService.Login(username, "password")
	require.NoError(t, err)
	return user, pair.Token
}

// encodeBody 按客户端约定将消息体编码为base64(gzip(json))
func encodeBody(t *testing.T, v interface{}) string {
	encoded, err := payload.Encode(v)
	require.NoError(t, err)
	return encoded
}

// TestCreateDeckWire 测试发布牌组端点的消息体格式
// deck字段是二次序列化的JSON字符串
func TestCreateDeckWire(t *testing.T) {
	env := setupWireEnv(t)
	user, _ := env.registerAndLogin(t, "publisher")

	deckJSON, err := json.Marshal(map[string]any{
		"name": "协议测试牌组",
		"notes": []any{
			map[string]any{"guid": "n1", "fields": []any{"正面", "背面"}},
		},
	})
	require.NoError(t, err)

	t.Run("发布成功返回牌组哈希", func(t *testing.T) {
		body := encodeBody(t, map[string]any{
			"deck":     string(deckJSON),
			"username": "publisher",
		})
		w := env.post(t, "/createDeck", body)
		require.Equal(t, 200, w.Code)

		var resp struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Status)
		assert.NotEmpty(t, resp.Message)

		var deck database.Deck
		require.NoError(t, env.db.Where("deck_hash = ?", resp.Message).First(&deck).Error)
		assert.Equal(t, user.ID, deck.CreatorID)
	})

	t.Run("deck字段不是合法JSON时报错", func(t *testing.T) {
		body := encodeBody(t, map[string]any{
			"deck":     "not json at all",
			"username": "publisher",
		})
		w := env.post(t, "/createDeck", body)
		assert.Equal(t, 400, w.Code)
	})
}

// TestSubmitCardWire 测试建议提交端点的消息体格式
// 牌组哈希键为remote_deck，deck字段为JSON字符串
func TestSubmitCardWire(t *testing.T) {
	env := setupWireEnv(t)
	user, _ := env.registerAndLogin(t, "maintainer")

	result, err := env.deckService.PublishDeck(map[string]any{
		"name":  "建议协议测试",
		"notes": []any{map[string]any{"guid": "n1", "fields": []any{"原始", "背面"}}},
	}, user.ID)
	require.NoError(t, err)

	revised, err := json.Marshal(map[string]any{
		"name":  "建议协议测试",
		"notes": []any{map[string]any{"guid": "n1", "fields": []any{"修正", "背面"}}},
	})
	require.NoError(t, err)

	body := encodeBody(t, map[string]any{
		"remote_deck":     result.DeckHash,
		"deck_path":       "建议协议测试",
		"new_name":        "",
		"deck":            string(revised),
		"rationale":       1,
		"commit_text":     "修正第一张卡片",
		"token":           "",
		"force_overwrite": false,
	})
	w := env.post(t, "/submitCard", body)
	require.Equal(t, 200, w.Code)

	var resp struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Status)
	require.NotEmpty(t, resp.Message)

	var suggestion database.Suggestion
	require.NoError(t, env.db.Where("suggestion_id = ?", resp.Message).First(&suggestion).Error)
	assert.Equal(t, database.SuggestionStatusPending, suggestion.Status)
}

// TestPullChangesWire 测试增量拉取端点的消息体格式
// 客户端上报的是对象映射，时间戳为UTC字符串
func TestPullChangesWire(t *testing.T) {
	env := setupWireEnv(t)
	user, _ := env.registerAndLogin(t, "subscriber-owner")

	result, err := env.deckService.PublishDeck(map[string]any{
		"name":  "拉取协议测试",
		"notes": []any{map[string]any{"guid": "n1", "fields": []any{"正面", "背面"}}},
	}, user.ID)
	require.NoError(t, err)

	t.Run("本地时间戳较旧时下发更新", func(t *testing.T) {
		body, err := json.Marshal(map[string]any{
			result.DeckHash: map[string]any{
				"timestamp": "2000-01-01 00:00:00",
				"deck_path": "拉取协议测试",
			},
		})
		require.NoError(t, err)

		w := env.post(t, "/pullChanges", string(body))
		require.Equal(t, 200, w.Code)

		// 响应为base64(gzip(json))编码的更新列表
		var updates []deckservice.Update
		require.NoError(t, payload.Decode(w.Body.Bytes(), &updates))
		require.Len(t, updates, 1)
		assert.Equal(t, result.DeckHash, updates[0].DeckHash)
		assert.NotEmpty(t, updates[0].Deck)
	})

	t.Run("本地已是最新时不下发", func(t *testing.T) {
		body, err := json.Marshal(map[string]any{
			result.DeckHash: map[string]any{"timestamp": "2099-01-01 00:00:00"},
		})
		require.NoError(t, err)

		w := env.post(t, "/pullChanges", string(body))
		require.Equal(t, 200, w.Code)

		var updates []deckservice.Update
		require.NoError(t, payload.Decode(w.Body.Bytes(), &updates))
		assert.Empty(t, updates)
	})

	t.Run("时间戳不可解析时按从未同步处理", func(t *testing.T) {
		body, err := json.Marshal(map[string]any{
			result.DeckHash: map[string]any{"timestamp": "垃圾数据"},
		})
		require.NoError(t, err)

		w := env.post(t, "/pullChanges", string(body))
		require.Equal(t, 200, w.Code)

		var updates []deckservice.Update
		require.NoError(t, payload.Decode(w.Body.Bytes(), &updates))
		assert.Len(t, updates, 1)
	})
}

// TestCheckUserTokenWire 测试维护者校验端点
// 按协议返回纯文本true或false，令牌有效但非维护者时为false
func TestCheckUserTokenWire(t *testing.T) {
	env := setupWireEnv(t)
	maintainer, maintainerToken := env.registerAndLogin(t, "deck-owner")
	_, visitorToken := env.registerAndLogin(t, "deck-visitor")

	result, err := env.deckService.PublishDeck(map[string]any{
		"name":  "维护者校验测试",
		"notes": []any{map[string]any{"guid": "n1", "fields": []any{"正面", "背面"}}},
	}, maintainer.ID)
	require.NoError(t, err)

	t.Run("维护者返回true", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"token": maintainerToken, "deck_hash": result.DeckHash,
		})
		w := env.post(t, "/CheckUserToken", string(body))
		require.Equal(t, 200, w.Code)
		assert.Equal(t, "true", w.Body.String())
	})

	t.Run("非维护者返回false", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"token": visitorToken, "deck_hash": result.DeckHash,
		})
		w := env.post(t, "/CheckUserToken", string(body))
		require.Equal(t, 200, w.Code)
		assert.Equal(t, "false", w.Body.String())
	})

	t.Run("缺少牌组哈希返回false", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"token": maintainerToken})
		w := env.post(t, "/CheckUserToken", string(body))
		require.Equal(t, 200, w.Code)
		assert.Equal(t, "false", w.Body.String())
	})
}

// TestGetUserHashFromTokenWire 测试用户哈希查询端点
// 响应体是裸JSON字符串
func TestGetUserHashFromTokenWire(t *testing.T) {
	env := setupWireEnv(t)
	user, token := env.registerAndLogin(t, "hash-user")

	body, _ := json.Marshal(map[string]string{"token": token})
	w := env.post(t, "/GetUserHashFromToken", string(body))
	require.Equal(t, 200, w.Code)

	var userHash string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &userHash))
	assert.Equal(t, user.UserHash, userHash)
}

// TestMediaCheckWire 测试媒体批量登记端点的消息体格式
// 令牌在消息体内，文件大小键为file_size
func TestMediaCheckWire(t *testing.T) {
	env := setupWireEnv(t)
	user, token := env.registerAndLogin(t, "media-user")

	t.Run("登记请求按消息体令牌认证", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"token":     token,
			"deck_hash": "media-deck",
			"files": []map[string]any{
				{"hash": "hash-1", "filename": "a.png", "note_guid": "n1", "file_size": 1234},
			},
			"bulk_operation_id": "op-1",
		})
		w := env.post(t, "/media/check/bulk", string(body))
		require.Equal(t, 200, w.Code)

		// 服务层收到解码后的文件大小和认证用户
		assert.Equal(t, "media-deck", env.media.lastDeckHash)
		assert.Equal(t, user.ID, env.media.lastUserID)
		require.Len(t, env.media.lastFiles, 1)
		assert.Equal(t, int64(1234), env.media.lastFiles[0].Size)

		// 响应键与客户端读取的键一致
		var resp map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp, "batch_id")
		assert.Contains(t, resp, "existing_files")
		assert.Contains(t, resp, "missing_files")

		var uploads []map[string]any
		require.NoError(t, json.Unmarshal(resp["missing_files"], &uploads))
		require.Len(t, uploads, 1)
		assert.Contains(t, uploads[0], "presigned_url")
	})

	t.Run("令牌无效时拒绝", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"token":     "invalid-token",
			"deck_hash": "media-deck",
			"files": []map[string]any{
				{"hash": "hash-1", "filename": "a.png", "file_size": 1},
			},
		})
		w := env.post(t, "/media/check/bulk", string(body))
		assert.Equal(t, 401, w.Code)
	})
}

// TestMediaConfirmWire 测试媒体批量确认端点的消息体格式
func TestMediaConfirmWire(t *testing.T) {
	env := setupWireEnv(t)

	body, _ := json.Marshal(map[string]any{
		"batch_id":          "batch-test-1",
		"confirmed_files":   []string{"hash-missing"},
		"bulk_operation_id": "op-1",
	})
	w := env.post(t, "/media/confirm/bulk", string(body))
	require.Equal(t, 200, w.Code)

	assert.Equal(t, "batch-test-1", env.media.lastBatchID)
	assert.Equal(t, []string{"hash-missing"}, env.media.lastConfirmed)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "confirmed_files")
}

// TestMediaManifestWire 测试下载清单端点的消息体格式
// 令牌键为user_token
func TestMediaManifestWire(t *testing.T) {
	env := setupWireEnv(t)
	_, token := env.registerAndLogin(t, "manifest-user")
	env.media.manifestEntries = []mediaservice.ManifestEntry{
		{Filename: "a.png", Hash: "hash-1", URL: "https://oss.example/get"},
	}

	t.Run("按user_token认证并返回清单", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"user_token": token,
			"deck_hash":  "media-deck",
			"filenames":  []string{"a.png"},
		})
		w := env.post(t, "/media/manifest", string(body))
		require.Equal(t, 200, w.Code)

		var resp struct {
			Files []mediaservice.ManifestEntry `json:"files"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Files, 1)
		assert.Equal(t, "a.png", resp.Files[0].Filename)
	})

	t.Run("令牌无效时拒绝", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"user_token": "invalid-token",
			"deck_hash":  "media-deck",
		})
		w := env.post(t, "/media/manifest", string(body))
		assert.Equal(t, 401, w.Code)
	})
}

var _ mediaservice.MediaService = (*stubMediaService)(nil)
