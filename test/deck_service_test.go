// Package test 提供牌组服务的单元测试
// 测试牌组的发布去重、时间戳查询、增量拉取、订阅和统计等核心功能
package test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ankicollab/collab-server/internal/database"
	deckservice "github.com/ankicollab/collab-server/internal/service/deck"
)

// setupTestDB 设置测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	// 使用内存SQLite数据库进行测试
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// 自动迁移表结构
	err = db.AutoMigrate(
		&database.User{},
		&database.Deck{},
		&database.Subscription{},
		&database.ChangelogEntry{},
		&database.DeckStat{},
	)
	require.NoError(t, err)

	return db
}

// setupDeckService 设置牌组测试服务
func setupDeckService(t *testing.T) (deckservice.DeckService, *gorm.DB) {
	db := setupTestDB(t)
	return deckservice.NewDeckService(db), db
}

// sampleDeck 构造测试用的牌组内容
func sampleDeck(name string) map[string]interface{} {
	return map[string]interface{}{
		"name": name,
		"notes": []interface{}{
			map[string]interface{}{
				"guid":   "abc123",
				"fields": []interface{}{"front text", "back text"},
			},
		},
	}
}

// TestPublishDeck 测试发布牌组
func TestPublishDeck(t *testing.T) {
	deckService, db := setupDeckService(t)

	t.Run("发布新牌组", func(t *testing.T) {
		result, err := deckService.PublishDeck(sampleDeck("日语N2词汇"), 1)
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.NotEmpty(t, result.DeckHash)

		var deck database.Deck
		err = db.Where("deck_hash = ?", result.DeckHash).First(&deck).Error
		require.NoError(t, err)
		assert.Equal(t, "日语N2词汇", deck.Name)
		assert.Equal(t, uint(1), deck.CreatorID)
		assert.NotEmpty(t, deck.ContentHash)
	})

	t.Run("相同内容去重", func(t *testing.T) {
		first, err := deckService.PublishDeck(sampleDeck("解剖学基础"), 1)
		require.NoError(t, err)
		assert.True(t, first.Created)

		// 相同内容再次发布应返回已有牌组哈希
		second, err := deckService.PublishDeck(sampleDeck("解剖学基础"), 2)
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.DeckHash, second.DeckHash)

		var count int64
		db.Model(&database.Deck{}).Where("name = ?", "解剖学基础").Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("空内容被拒绝", func(t *testing.T) {
		_, err := deckService.PublishDeck(map[string]interface{}{}, 1)
		assert.Error(t, err)
	})
}

// TestGetDeckTimestamp 测试查询牌组时间戳
func TestGetDeckTimestamp(t *testing.T) {
	deckService, _ := setupDeckService(t)

	result, err := deckService.PublishDeck(sampleDeck("时间戳测试"), 1)
	require.NoError(t, err)

	t.Run("查询已有牌组", func(t *testing.T) {
		ts, err := deckService.GetDeckTimestamp(result.DeckHash)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
	})

	t.Run("查询不存在的牌组", func(t *testing.T) {
		_, err := deckService.GetDeckTimestamp("no-such-deck")
		assert.Error(t, err)
	})
}

// TestPullChanges 测试增量拉取
func TestPullChanges(t *testing.T) {
	deckService, _ := setupDeckService(t)

	result, err := deckService.PublishDeck(sampleDeck("增量拉取测试"), 1)
	require.NoError(t, err)

	t.Run("客户端时间戳较旧时下发更新", func(t *testing.T) {
		since := map[string]float64{result.DeckHash: 0}
		updates, err := deckService.PullChanges(since)
		require.NoError(t, err)
		require.Len(t, updates, 1)
		assert.Equal(t, result.DeckHash, updates[0].DeckHash)
		assert.NotEmpty(t, updates[0].Deck)
	})

	t.Run("客户端已是最新时不下发", func(t *testing.T) {
		future := float64(time.Now().Add(time.Hour).Unix())
		since := map[string]float64{result.DeckHash: future}
		updates, err := deckService.PullChanges(since)
		require.NoError(t, err)
		assert.Empty(t, updates)
	})

	t.Run("未知牌组被跳过", func(t *testing.T) {
		since := map[string]float64{"unknown-deck-hash": 0}
		updates, err := deckService.PullChanges(since)
		require.NoError(t, err)
		assert.Empty(t, updates)
	})
}

// TestSubscription 测试订阅管理
func TestSubscription(t *testing.T) {
	deckService, db := setupDeckService(t)

	result, err := deckService.PublishDeck(sampleDeck("订阅测试"), 1)
	require.NoError(t, err)

	t.Run("订阅增加计数", func(t *testing.T) {
		err := deckService.Subscribe(result.DeckHash, "userhash-1")
		require.NoError(t, err)

		var deck database.Deck
		db.Where("deck_hash = ?", result.DeckHash).First(&deck)
		assert.Equal(t, int64(1), deck.SubscriberCount)
	})

	t.Run("重复订阅不重复计数", func(t *testing.T) {
		err := deckService.Subscribe(result.DeckHash, "userhash-1")
		require.NoError(t, err)

		var deck database.Deck
		db.Where("deck_hash = ?", result.DeckHash).First(&deck)
		assert.Equal(t, int64(1), deck.SubscriberCount)
	})

	t.Run("取消订阅减少计数", func(t *testing.T) {
		err := deckService.Unsubscribe(result.DeckHash, "userhash-1")
		require.NoError(t, err)

		var deck database.Deck
		db.Where("deck_hash = ?", result.DeckHash).First(&deck)
		assert.Equal(t, int64(0), deck.SubscriberCount)
	})

	t.Run("取消未订阅的用户按幂等处理", func(t *testing.T) {
		err := deckService.Unsubscribe(result.DeckHash, "userhash-never")
		require.NoError(t, err)

		var deck database.Deck
		db.Where("deck_hash = ?", result.DeckHash).First(&deck)
		assert.Equal(t, int64(0), deck.SubscriberCount)
	})

	t.Run("订阅不存在的牌组报错", func(t *testing.T) {
		err := deckService.Subscribe("no-such-deck", "userhash-1")
		assert.Error(t, err)
	})
}

// TestReplaceDeckPayload 测试牌组内容替换
func TestReplaceDeckPayload(t *testing.T) {
	deckService, db := setupDeckService(t)

	result, err := deckService.PublishDeck(sampleDeck("替换测试"), 1)
	require.NoError(t, err)

	var before database.Deck
	db.Where("deck_hash = ?", result.DeckHash).First(&before)

	t.Run("替换后内容哈希和时间戳更新", func(t *testing.T) {
		time.Sleep(10 * time.Millisecond)
		err := deckService.ReplaceDeckPayload(result.DeckHash, sampleDeck("替换测试v2"))
		require.NoError(t, err)

		var after database.Deck
		db.Where("deck_hash = ?", result.DeckHash).First(&after)
		assert.NotEqual(t, before.ContentHash, after.ContentHash)
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	})

	t.Run("替换不存在的牌组报错", func(t *testing.T) {
		err := deckService.ReplaceDeckPayload("no-such-deck", sampleDeck("任意内容"))
		assert.Error(t, err)
	})

	t.Run("替换后允许与其他牌组内容相同", func(t *testing.T) {
		other, err := deckService.PublishDeck(sampleDeck("另一个牌组"), 2)
		require.NoError(t, err)

		// 采纳建议可能让两个牌组内容一致，替换不得因此失败
		require.NoError(t, deckService.ReplaceDeckPayload(other.DeckHash, sampleDeck("替换测试v2")))

		var first, second database.Deck
		db.Where("deck_hash = ?", result.DeckHash).First(&first)
		db.Where("deck_hash = ?", other.DeckHash).First(&second)
		assert.Equal(t, first.ContentHash, second.ContentHash)
	})
}

// TestDeckStats 测试复习统计上传
func TestDeckStats(t *testing.T) {
	deckService, db := setupDeckService(t)

	result, err := deckService.PublishDeck(sampleDeck("统计测试"), 1)
	require.NoError(t, err)

	t.Run("首次上传创建记录", func(t *testing.T) {
		stats := &deckservice.Stats{
			UserHash:      "userhash-1",
			DeckHash:      result.DeckHash,
			ReviewHistory: []byte(`[{"card":"c1","ease":3},{"card":"c2","ease":2}]`),
		}
		require.NoError(t, deckService.SaveStats(stats))

		var record database.DeckStat
		err := db.Where("deck_hash = ? AND user_hash = ?", result.DeckHash, "userhash-1").
			First(&record).Error
		require.NoError(t, err)
		assert.Equal(t, int64(2), record.EntryCount)
	})

	t.Run("再次上传覆盖旧记录", func(t *testing.T) {
		stats := &deckservice.Stats{
			UserHash:      "userhash-1",
			DeckHash:      result.DeckHash,
			ReviewHistory: []byte(`[{"card":"c1","ease":4}]`),
		}
		require.NoError(t, deckService.SaveStats(stats))

		var count int64
		db.Model(&database.DeckStat{}).
			Where("deck_hash = ? AND user_hash = ?", result.DeckHash, "userhash-1").Count(&count)
		assert.Equal(t, int64(1), count)

		var record database.DeckStat
		db.Where("deck_hash = ? AND user_hash = ?", result.DeckHash, "userhash-1").First(&record)
		assert.Equal(t, int64(1), record.EntryCount)
	})
}

// TestChangelog 测试变更日志
func TestChangelog(t *testing.T) {
	deckService, db := setupDeckService(t)

	result, err := deckService.PublishDeck(sampleDeck("日志测试"), 1)
	require.NoError(t, err)

	t.Run("追加变更日志", func(t *testing.T) {
		require.NoError(t, deckService.SubmitChangelog(result.DeckHash, "修正了第3章的错别字", 1))
		require.NoError(t, deckService.SubmitChangelog(result.DeckHash, "新增了50张卡片", 1))

		var count int64
		db.Model(&database.ChangelogEntry{}).Where("deck_hash = ?", result.DeckHash).Count(&count)
		assert.Equal(t, int64(2), count)
	})

	t.Run("空日志被拒绝", func(t *testing.T) {
		err := deckService.SubmitChangelog(result.DeckHash, "", 1)
		assert.Error(t, err)
	})
}

// TestListAndSearchDecks 测试牌组列表和搜索
func TestListAndSearchDecks(t *testing.T) {
	deckService, _ := setupDeckService(t)

	for i := 0; i < 5; i++ {
		deck := sampleDeck(fmt.Sprintf("词汇牌组%d", i))
		_, err := deckService.PublishDeck(deck, 1)
		require.NoError(t, err)
	}
	_, err := deckService.PublishDeck(sampleDeck("语法专项"), 1)
	require.NoError(t, err)

	t.Run("分页列表", func(t *testing.T) {
		decks, total, err := deckService.ListDecks(1, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(6), total)
		assert.Len(t, decks, 4)
	})

	t.Run("名称搜索", func(t *testing.T) {
		decks, total, err := deckService.SearchDecks("词汇", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, decks, 5)
	})
}
