// Package i18n 提供国际化支持
// 负责管理应用程序的语言包和翻译功能
package i18n

import (
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/ankicollab/collab-server/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包存储
	translations = map[string]map[string]string{
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"unauthorized":          "未授权",
			"forbidden":             "禁止访问",
			"not_found":             "资源未找到",
			"method_not_allowed":    "方法不允许",
			"too_many_requests":     "请求过于频繁",
			"service_unavailable":   "服务不可用",
			"payload_decode_failed": "请求体解码失败",

			"deck_not_found":      "牌组未找到",
			"deck_already_exists": "牌组已存在",
			"deck_create_failed":  "牌组创建失败",
			"deck_update_failed":  "牌组更新失败",
			"deck_invalid_hash":   "牌组哈希无效",
			"deck_empty_payload":  "牌组内容为空",
			"subscription_failed": "订阅操作失败",

			"media_not_found":        "媒体文件未找到",
			"media_size_too_large":   "媒体文件大小超限",
			"media_type_not_allowed": "媒体文件类型不允许",
			"media_hash_mismatch":    "媒体文件哈希不匹配",
			"media_batch_not_found":  "上传批次未找到",
			"media_batch_too_large":  "批量操作文件数超限",
			"media_upload_failed":    "媒体上传失败",
			"media_confirm_failed":   "媒体确认失败",
			"media_still_referenced": "媒体仍被引用",
			"media_batch_closed":     "上传批次已关闭或过期",

			"suggestion_not_found":     "建议未找到",
			"suggestion_closed":        "建议已处理",
			"suggestion_invalid":       "建议内容无效",
			"suggestion_submit_failed": "建议提交失败",

			"invalid_credentials": "用户名或密码错误",
			"token_invalid":       "令牌无效",
			"token_expired":       "令牌已过期",
			"not_maintainer":      "非牌组维护者",
			"user_already_exists": "用户已存在",

			"storage_config_not_found":       "存储配置未找到",
			"storage_config_invalid":         "存储配置无效",
			"storage_connection_failed":      "存储连接失败",
			"storage_upload_failed":          "存储上传失败",
			"storage_download_failed":        "存储下载失败",
			"storage_delete_failed":          "存储删除失败",
			"storage_provider_not_supported": "存储提供商不支持",
			"storage_presign_not_supported":  "存储提供商不支持预签名上传",

			"database_connection":   "数据库连接错误",
			"database_query":        "数据库查询错误",
			"database_insert":       "数据库插入错误",
			"database_update":       "数据库更新错误",
			"database_delete":       "数据库删除错误",
			"database_transaction":  "数据库事务错误",
			"record_not_found":      "记录未找到",
			"record_already_exists": "记录已存在",

			"unknown_error": "未知错误",
		},
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"unauthorized":          "Unauthorized",
			"forbidden":             "Forbidden",
			"not_found":             "Resource Not Found",
			"method_not_allowed":    "Method Not Allowed",
			"too_many_requests":     "Too Many Requests",
			"service_unavailable":   "Service Unavailable",
			"payload_decode_failed": "Payload Decode Failed",

			"deck_not_found":      "Deck Not Found",
			"deck_already_exists": "Deck Already Exists",
			"deck_create_failed":  "Deck Create Failed",
			"deck_update_failed":  "Deck Update Failed",
			"deck_invalid_hash":   "Invalid Deck Hash",
			"deck_empty_payload":  "Empty Deck Payload",
			"subscription_failed": "Subscription Failed",

			"media_not_found":        "Media File Not Found",
			"media_size_too_large":   "Media File Too Large",
			"media_type_not_allowed": "Media Type Not Allowed",
			"media_hash_mismatch":    "Media Hash Mismatch",
			"media_batch_not_found":  "Upload Batch Not Found",
			"media_batch_too_large":  "Batch File Count Exceeded",
			"media_upload_failed":    "Media Upload Failed",
			"media_confirm_failed":   "Media Confirm Failed",
			"media_still_referenced": "Media Still Referenced",
			"media_batch_closed":     "Upload Batch Closed or Expired",

			"suggestion_not_found":     "Suggestion Not Found",
			"suggestion_closed":        "Suggestion Already Reviewed",
			"suggestion_invalid":       "Invalid Suggestion",
			"suggestion_submit_failed": "Suggestion Submit Failed",

			"invalid_credentials": "Invalid Username Or Password",
			"token_invalid":       "Invalid Token",
			"token_expired":       "Token Expired",
			"not_maintainer":      "Not A Deck Maintainer",
			"user_already_exists": "User Already Exists",

			"storage_config_not_found":       "Storage Config Not Found",
			"storage_config_invalid":         "Storage Config Invalid",
			"storage_connection_failed":      "Storage Connection Failed",
			"storage_upload_failed":          "Storage Upload Failed",
			"storage_download_failed":        "Storage Download Failed",
			"storage_delete_failed":          "Storage Delete Failed",
			"storage_provider_not_supported": "Storage Provider Not Supported",
			"storage_presign_not_supported":  "Storage Provider Cannot Presign Uploads",

			"database_connection":   "Database Connection Error",
			"database_query":        "Database Query Error",
			"database_insert":       "Database Insert Error",
			"database_update":       "Database Update Error",
			"database_delete":       "Database Delete Error",
			"database_transaction":  "Database Transaction Error",
			"record_not_found":      "Record Not Found",
			"record_already_exists": "Record Already Exists",

			"unknown_error": "Unknown Error",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangZhCN,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器
func (i *I18n) initTranslators() {
	// 创建通用翻译器
	zhCN := zh.New()
	enUS := en_US.New()
	uni := ut.New(zhCN, enUS, zhCN)

	// 注册支持的语言 - 使用locale库的标识符
	langMappings := map[string]string{
		LangZhCN: "zh",    // 中文使用 "zh"
		LangEnUS: "en_US", // 英文使用 "en_US"
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("初始化翻译器失败 for language %s (locale: %s): translator not found", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}

	logger.Info("国际化翻译器初始化完成")
}

// Translate 根据键和语言获取翻译
func (i *I18n) Translate(key, lang string) string {
	// 检查语言是否支持，否则使用默认语言
	_, exists := i.translators[lang]
	if !exists {
		_, exists := i.translators[i.defaultLang]
		if !exists {
			logger.Warnf("未找到翻译器，使用默认文本: %s", key)
			return key
		}
	}

	// 查找翻译
	if translation, found := translations[lang][key]; found {
		return translation
	}

	// 如果当前语言没有找到，尝试在默认语言中查找
	if lang != i.defaultLang {
		if translation, found := translations[i.defaultLang][key]; found {
			return translation
		}
	}

	logger.Warnf("未找到翻译: %s, 语言: %s", key, lang)
	return key
}

// SetDefaultLanguage 设置默认语言
func (i *I18n) SetDefaultLanguage(lang string) {
	i.defaultLang = lang
	logger.Infof("设置默认语言为: %s", lang)
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}

// GetSupportedLanguages 获取支持的语言列表
func (i *I18n) GetSupportedLanguages() []string {
	langs := make([]string, 0, len(i.translators))
	for lang := range i.translators {
		langs = append(langs, lang)
	}
	return langs
}
