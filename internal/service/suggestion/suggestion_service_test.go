package suggestion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/config"
	"github.com/ankicollab/collab-server/internal/database"
	authservice "github.com/ankicollab/collab-server/internal/service/auth"
	deckservice "github.com/ankicollab/collab-server/internal/service/deck"
)

// suggestionTestEnv 建议测试环境
type suggestionTestEnv struct {
	db                *gorm.DB
	deckService       deckservice.DeckService
	authService       authservice.AuthService
	suggestionService SuggestionService
}

// setupSuggestionEnv 设置建议测试环境
func setupSuggestionEnv(t *testing.T) *suggestionTestEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&database.User{},
		&database.AuthToken{},
		&database.Deck{},
		&database.Suggestion{},
		&database.ChangelogEntry{},
	)
	require.NoError(t, err)

	deckService := deckservice.NewDeckService(db)
	authService := authservice.NewAuthService(db, config.AuthConfig{
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 7200,
		BcryptCost:      4,
	})

	return &suggestionTestEnv{
		db:                db,
		deckService:       deckService,
		authService:       authService,
		suggestionService: NewSuggestionService(db, deckService, authService),
	}
}

// publishTestDeck 以指定用户发布一个测试牌组
func (env *suggestionTestEnv) publishTestDeck(t *testing.T, creatorID uint) string {
	result, err := env.deckService.PublishDeck(map[string]any{
		"name": "建议测试牌组",
		"notes": []any{
			map[string]any{"guid": "n1", "fields": []any{"原始正面", "原始背面"}},
		},
	}, creatorID)
	require.NoError(t, err)
	return result.DeckHash
}

// revisedDeck 构造建议使用的修改后内容，客户端发送二次序列化的JSON字符串
func revisedDeck() string {
	raw, _ := json.Marshal(map[string]any{
		"name": "建议测试牌组",
		"notes": []any{
			map[string]any{"guid": "n1", "fields": []any{"修正后的正面", "原始背面"}},
		},
	})
	return string(raw)
}

// deckSnapshot 读取牌组当前的内容哈希
func (env *suggestionTestEnv) deckSnapshot(t *testing.T, deckHash string) string {
	var deck database.Deck
	require.NoError(t, env.db.Where("deck_hash = ?", deckHash).First(&deck).Error)
	return deck.ContentHash
}

// TestSubmitPending 测试待评审建议的提交
func TestSubmitPending(t *testing.T) {
	env := setupSuggestionEnv(t)
	deckHash := env.publishTestDeck(t, 1)
	before := env.deckSnapshot(t, deckHash)

	t.Run("提交后进入待评审且不改动牌组", func(t *testing.T) {
		result, err := env.suggestionService.Submit(&SubmitRequest{
			DeckHash:      deckHash,
			Deck:          revisedDeck(),
			Rationale:     1,
			CommitText:    "修正第一张卡片的错别字",
			SubmitterHash: "submitter-1",
		})
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.NotEmpty(t, result.SuggestionID)

		suggestion, err := env.suggestionService.GetSuggestion(result.SuggestionID)
		require.NoError(t, err)
		assert.Equal(t, database.SuggestionStatusPending, suggestion.Status)

		// 采纳前牌组内容保持不变
		assert.Equal(t, before, env.deckSnapshot(t, deckHash))
	})

	t.Run("缺少牌组哈希被拒绝", func(t *testing.T) {
		_, err := env.suggestionService.Submit(&SubmitRequest{Deck: revisedDeck()})
		assert.Error(t, err)
	})

	t.Run("空内容被拒绝", func(t *testing.T) {
		_, err := env.suggestionService.Submit(&SubmitRequest{DeckHash: deckHash})
		assert.Error(t, err)
	})

	t.Run("非JSON内容被拒绝", func(t *testing.T) {
		_, err := env.suggestionService.Submit(&SubmitRequest{
			DeckHash: deckHash,
			Deck:     "这不是JSON",
		})
		assert.Error(t, err)
	})

	t.Run("目标牌组不存在被拒绝", func(t *testing.T) {
		_, err := env.suggestionService.Submit(&SubmitRequest{
			DeckHash: "no-such-deck",
			Deck:     revisedDeck(),
		})
		assert.Error(t, err)
	})
}

// TestApprove 测试建议采纳
func TestApprove(t *testing.T) {
	env := setupSuggestionEnv(t)
	deckHash := env.publishTestDeck(t, 1)
	before := env.deckSnapshot(t, deckHash)

	result, err := env.suggestionService.Submit(&SubmitRequest{
		DeckHash:      deckHash,
		Deck:          revisedDeck(),
		Rationale:     1,
		CommitText:    "修正卡片内容",
		SubmitterHash: "submitter-1",
	})
	require.NoError(t, err)

	t.Run("非维护者不可采纳", func(t *testing.T) {
		assert.Error(t, env.suggestionService.Approve(result.SuggestionID, 99))

		// 牌组未被改动，建议仍待评审
		assert.Equal(t, before, env.deckSnapshot(t, deckHash))
		suggestion, err := env.suggestionService.GetSuggestion(result.SuggestionID)
		require.NoError(t, err)
		assert.Equal(t, database.SuggestionStatusPending, suggestion.Status)
	})

	t.Run("采纳后内容写入牌组", func(t *testing.T) {
		require.NoError(t, env.suggestionService.Approve(result.SuggestionID, 1))

		assert.NotEqual(t, before, env.deckSnapshot(t, deckHash))

		suggestion, err := env.suggestionService.GetSuggestion(result.SuggestionID)
		require.NoError(t, err)
		assert.Equal(t, database.SuggestionStatusApproved, suggestion.Status)
		require.NotNil(t, suggestion.ReviewerID)
		assert.Equal(t, uint(1), *suggestion.ReviewerID)
		assert.NotNil(t, suggestion.ReviewedAt)
	})

	t.Run("采纳时记录变更日志", func(t *testing.T) {
		var count int64
		env.db.Model(&database.ChangelogEntry{}).Where("deck_hash = ?", deckHash).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("已采纳的建议不可重复评审", func(t *testing.T) {
		assert.Error(t, env.suggestionService.Approve(result.SuggestionID, 1))
		assert.Error(t, env.suggestionService.Deny(result.SuggestionID, 1))
	})

	t.Run("采纳不存在的建议报错", func(t *testing.T) {
		assert.Error(t, env.suggestionService.Approve("no-such-suggestion", 1))
	})
}

// TestDeny 测试建议驳回
func TestDeny(t *testing.T) {
	env := setupSuggestionEnv(t)
	deckHash := env.publishTestDeck(t, 1)
	before := env.deckSnapshot(t, deckHash)

	result, err := env.suggestionService.Submit(&SubmitRequest{
		DeckHash:      deckHash,
		Deck:          revisedDeck(),
		SubmitterHash: "submitter-1",
	})
	require.NoError(t, err)

	t.Run("非维护者不可驳回", func(t *testing.T) {
		assert.Error(t, env.suggestionService.Deny(result.SuggestionID, 99))
	})

	t.Run("驳回后牌组内容不变", func(t *testing.T) {
		require.NoError(t, env.suggestionService.Deny(result.SuggestionID, 1))

		assert.Equal(t, before, env.deckSnapshot(t, deckHash))

		suggestion, err := env.suggestionService.GetSuggestion(result.SuggestionID)
		require.NoError(t, err)
		assert.Equal(t, database.SuggestionStatusDenied, suggestion.Status)
	})

	t.Run("驳回后不可再采纳", func(t *testing.T) {
		assert.Error(t, env.suggestionService.Approve(result.SuggestionID, 1))
	})
}

// TestForceOverwrite 测试维护者覆盖模式
func TestForceOverwrite(t *testing.T) {
	env := setupSuggestionEnv(t)

	maintainer, err := env.authService.Register("maintainer", "password")
	require.NoError(t, err)
	_, err = env.authService.Register("visitor", "password")
	require.NoError(t, err)

	deckHash := env.publishTestDeck(t, maintainer.ID)
	before := env.deckSnapshot(t, deckHash)

	maintainerPair, err := env.authService.Login("maintainer", "password")
	require.NoError(t, err)
	visitorPair, err := env.authService.Login("visitor", "password")
	require.NoError(t, err)

	t.Run("维护者覆盖直接生效", func(t *testing.T) {
		result, err := env.suggestionService.Submit(&SubmitRequest{
			DeckHash:       deckHash,
			Deck:           revisedDeck(),
			CommitText:     "维护者直接更新",
			Token:          maintainerPair.Token,
			ForceOverwrite: true,
		})
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Empty(t, result.SuggestionID)

		assert.NotEqual(t, before, env.deckSnapshot(t, deckHash))

		// 覆盖保留一条已采纳的审计记录
		var audit database.Suggestion
		require.NoError(t, env.db.Where("deck_hash = ?", deckHash).First(&audit).Error)
		assert.Equal(t, database.SuggestionStatusApproved, audit.Status)
		assert.Equal(t, database.RationaleMaintainerOverride, audit.Rationale)
	})

	t.Run("非维护者覆盖被拒绝", func(t *testing.T) {
		snapshot := env.deckSnapshot(t, deckHash)

		_, err := env.suggestionService.Submit(&SubmitRequest{
			DeckHash:       deckHash,
			Deck:           `{"name":"恶意改动"}`,
			Token:          visitorPair.Token,
			ForceOverwrite: true,
		})
		assert.Error(t, err)
		assert.Equal(t, snapshot, env.deckSnapshot(t, deckHash))
	})
}

// TestListSuggestions 测试建议列表查询
func TestListSuggestions(t *testing.T) {
	env := setupSuggestionEnv(t)
	deckHash := env.publishTestDeck(t, 1)

	var firstID string
	for i := 0; i < 3; i++ {
		result, err := env.suggestionService.Submit(&SubmitRequest{
			DeckHash:      deckHash,
			Deck:          revisedDeck(),
			SubmitterHash: "submitter-1",
		})
		require.NoError(t, err)
		if i == 0 {
			firstID = result.SuggestionID
		}
	}
	require.NoError(t, env.suggestionService.Deny(firstID, 1))

	t.Run("按状态过滤", func(t *testing.T) {
		pending, total, err := env.suggestionService.ListSuggestions(
			deckHash, database.SuggestionStatusPending, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, pending, 2)
	})

	t.Run("不过滤时返回全部", func(t *testing.T) {
		all, total, err := env.suggestionService.ListSuggestions(deckHash, "", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, all, 3)
	})

	t.Run("分页生效", func(t *testing.T) {
		page, total, err := env.suggestionService.ListSuggestions(deckHash, "", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, page, 2)
	})
}
