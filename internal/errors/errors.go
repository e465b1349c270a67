package errors

import (
	"fmt"

	"github.com/ankicollab/collab-server/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess            ErrorCode = 0    // 成功
	ErrInternalServer     ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams      ErrorCode = 1001 // 参数错误
	ErrUnauthorized       ErrorCode = 1002 // 未授权
	ErrForbidden          ErrorCode = 1003 // 禁止访问
	ErrNotFound           ErrorCode = 1004 // 资源未找到
	ErrMethodNotAllowed   ErrorCode = 1005 // 方法不允许
	ErrTooManyRequests    ErrorCode = 1006 // 请求过于频繁
	ErrServiceUnavailable ErrorCode = 1007 // 服务不可用
	ErrPayloadDecode      ErrorCode = 1008 // 请求体解码失败

	// 牌组相关错误码 (2000-2999)
	ErrDeckNotFound      ErrorCode = 2000 // 牌组未找到
	ErrDeckAlreadyExists ErrorCode = 2001 // 牌组已存在
	ErrDeckCreateFailed  ErrorCode = 2002 // 牌组创建失败
	ErrDeckUpdateFailed  ErrorCode = 2003 // 牌组更新失败
	ErrDeckInvalidHash   ErrorCode = 2004 // 牌组哈希无效
	ErrDeckEmptyPayload  ErrorCode = 2005 // 牌组内容为空
	ErrSubscriptionFailed ErrorCode = 2006 // 订阅操作失败

	// 媒体相关错误码 (3000-3999)
	ErrMediaNotFound       ErrorCode = 3000 // 媒体文件未找到
	ErrMediaSizeTooLarge   ErrorCode = 3001 // 媒体文件大小超限
	ErrMediaTypeNotAllowed ErrorCode = 3002 // 媒体文件类型不允许
	ErrMediaHashMismatch   ErrorCode = 3003 // 媒体文件哈希不匹配
	ErrMediaBatchNotFound  ErrorCode = 3004 // 上传批次未找到
	ErrMediaBatchTooLarge  ErrorCode = 3005 // 批量操作文件数超限
	ErrMediaUploadFailed   ErrorCode = 3006 // 媒体上传失败
	ErrMediaConfirmFailed  ErrorCode = 3007 // 媒体确认失败
	ErrMediaStillReferenced ErrorCode = 3008 // 媒体仍被引用
	ErrMediaBatchClosed     ErrorCode = 3009 // 上传批次已关闭或过期

	// 建议相关错误码 (4000-4999)
	ErrSuggestionNotFound   ErrorCode = 4000 // 建议未找到
	ErrSuggestionClosed     ErrorCode = 4001 // 建议已处理
	ErrSuggestionInvalid    ErrorCode = 4002 // 建议内容无效
	ErrSuggestionSubmitFailed ErrorCode = 4003 // 建议提交失败

	// 认证相关错误码 (5000-5999)
	ErrInvalidCredentials ErrorCode = 5000 // 用户名或密码错误
	ErrTokenInvalid       ErrorCode = 5001 // 令牌无效
	ErrTokenExpired       ErrorCode = 5002 // 令牌已过期
	ErrNotMaintainer      ErrorCode = 5003 // 非牌组维护者
	ErrUserAlreadyExists  ErrorCode = 5004 // 用户已存在

	// 存储相关错误码 (6000-6999)
	ErrStorageConfigNotFound       ErrorCode = 6000 // 存储配置未找到
	ErrStorageConfigInvalid        ErrorCode = 6001 // 存储配置无效
	ErrStorageConnectionFailed     ErrorCode = 6002 // 存储连接失败
	ErrStorageUploadFailed         ErrorCode = 6003 // 存储上传失败
	ErrStorageDownloadFailed       ErrorCode = 6004 // 存储下载失败
	ErrStorageDeleteFailed         ErrorCode = 6005 // 存储删除失败
	ErrStorageProviderNotSupported ErrorCode = 6006 // 存储提供商不支持
	ErrStoragePresignNotSupported  ErrorCode = 6007 // 存储提供商不支持预签名上传

	// 数据库相关错误码 (7000-7999)
	ErrDatabaseConnection  ErrorCode = 7000 // 数据库连接错误
	ErrDatabaseQuery       ErrorCode = 7001 // 数据库查询错误
	ErrDatabaseInsert      ErrorCode = 7002 // 数据库插入错误
	ErrDatabaseUpdate      ErrorCode = 7003 // 数据库更新错误
	ErrDatabaseDelete      ErrorCode = 7004 // 数据库删除错误
	ErrDatabaseTransaction ErrorCode = 7005 // 数据库事务错误
	ErrRecordNotFound      ErrorCode = 7006 // 记录未找到
	ErrRecordAlreadyExists ErrorCode = 7007 // 记录已存在
)

// AppError 应用错误结构体
// @Description 应用程序统一错误格式
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// WithDetails 添加详细错误信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithOriginalError 添加原始错误
func (e *AppError) WithOriginalError(err error) *AppError {
	e.OriginalError = err
	if e.Details == "" && err != nil {
		e.Details = err.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails 创建带详细信息的应用错误
func NewWithDetails(code ErrorCode, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewByCode 根据错误码创建应用错误，消息取自i18n目录
func NewByCode(code ErrorCode) *AppError {
	return New(code, GetErrorMessage(code))
}

// Wrap 包装原始错误
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       message,
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// WrapByCode 根据错误码包装原始错误，消息取自i18n目录
func WrapByCode(code ErrorCode, err error) *AppError {
	return Wrap(code, GetErrorMessage(code), err)
}

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// IsCode 判断错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}

// 预定义的常用错误
var (
	// 通用错误
	ErrInternalServerError = NewByCode(ErrInternalServer)
	ErrInvalidParameters   = NewByCode(ErrInvalidParams)
	ErrUnauthorizedAccess  = NewByCode(ErrUnauthorized)
	ErrForbiddenAccess     = NewByCode(ErrForbidden)
	ErrResourceNotFound    = NewByCode(ErrNotFound)
	ErrPayloadDecodeError  = NewByCode(ErrPayloadDecode)

	// 牌组相关错误
	ErrDeckNotFoundError       = NewByCode(ErrDeckNotFound)
	ErrDeckAlreadyExistsError  = NewByCode(ErrDeckAlreadyExists)
	ErrDeckCreateFailedError   = NewByCode(ErrDeckCreateFailed)
	ErrDeckUpdateFailedError   = NewByCode(ErrDeckUpdateFailed)
	ErrDeckInvalidHashError    = NewByCode(ErrDeckInvalidHash)
	ErrDeckEmptyPayloadError   = NewByCode(ErrDeckEmptyPayload)
	ErrSubscriptionFailedError = NewByCode(ErrSubscriptionFailed)

	// 媒体相关错误
	ErrMediaNotFoundError        = NewByCode(ErrMediaNotFound)
	ErrMediaSizeTooLargeError    = NewByCode(ErrMediaSizeTooLarge)
	ErrMediaTypeNotAllowedError  = NewByCode(ErrMediaTypeNotAllowed)
	ErrMediaHashMismatchError    = NewByCode(ErrMediaHashMismatch)
	ErrMediaBatchNotFoundError   = NewByCode(ErrMediaBatchNotFound)
	ErrMediaBatchTooLargeError   = NewByCode(ErrMediaBatchTooLarge)
	ErrMediaUploadFailedError    = NewByCode(ErrMediaUploadFailed)
	ErrMediaConfirmFailedError   = NewByCode(ErrMediaConfirmFailed)
	ErrMediaStillReferencedError = NewByCode(ErrMediaStillReferenced)
	ErrMediaBatchClosedError     = NewByCode(ErrMediaBatchClosed)

	// 建议相关错误
	ErrSuggestionNotFoundError     = NewByCode(ErrSuggestionNotFound)
	ErrSuggestionClosedError       = NewByCode(ErrSuggestionClosed)
	ErrSuggestionInvalidError      = NewByCode(ErrSuggestionInvalid)
	ErrSuggestionSubmitFailedError = NewByCode(ErrSuggestionSubmitFailed)

	// 认证相关错误
	ErrInvalidCredentialsError = NewByCode(ErrInvalidCredentials)
	ErrTokenInvalidError       = NewByCode(ErrTokenInvalid)
	ErrTokenExpiredError       = NewByCode(ErrTokenExpired)
	ErrNotMaintainerError      = NewByCode(ErrNotMaintainer)
	ErrUserAlreadyExistsError  = NewByCode(ErrUserAlreadyExists)

	// 存储相关错误
	ErrStorageConfigNotFoundError       = NewByCode(ErrStorageConfigNotFound)
	ErrStorageConfigInvalidError        = NewByCode(ErrStorageConfigInvalid)
	ErrStorageConnectionFailedError     = NewByCode(ErrStorageConnectionFailed)
	ErrStorageUploadFailedError         = NewByCode(ErrStorageUploadFailed)
	ErrStorageDownloadFailedError       = NewByCode(ErrStorageDownloadFailed)
	ErrStorageDeleteFailedError         = NewByCode(ErrStorageDeleteFailed)
	ErrStorageProviderNotSupportedError = NewByCode(ErrStorageProviderNotSupported)
	ErrStoragePresignNotSupportedError  = NewByCode(ErrStoragePresignNotSupported)

	// 数据库相关错误
	ErrDatabaseConnectionError  = NewByCode(ErrDatabaseConnection)
	ErrDatabaseQueryError       = NewByCode(ErrDatabaseQuery)
	ErrDatabaseInsertError      = NewByCode(ErrDatabaseInsert)
	ErrDatabaseUpdateError      = NewByCode(ErrDatabaseUpdate)
	ErrDatabaseDeleteError      = NewByCode(ErrDatabaseDelete)
	ErrDatabaseTransactionError = NewByCode(ErrDatabaseTransaction)
	ErrRecordNotFoundError      = NewByCode(ErrRecordNotFound)
	ErrRecordAlreadyExistsError = NewByCode(ErrRecordAlreadyExists)
)

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:            "success",
	ErrInternalServer:     "internal_server_error",
	ErrInvalidParams:      "invalid_params",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrNotFound:           "not_found",
	ErrMethodNotAllowed:   "method_not_allowed",
	ErrTooManyRequests:    "too_many_requests",
	ErrServiceUnavailable: "service_unavailable",
	ErrPayloadDecode:      "payload_decode_failed",

	ErrDeckNotFound:       "deck_not_found",
	ErrDeckAlreadyExists:  "deck_already_exists",
	ErrDeckCreateFailed:   "deck_create_failed",
	ErrDeckUpdateFailed:   "deck_update_failed",
	ErrDeckInvalidHash:    "deck_invalid_hash",
	ErrDeckEmptyPayload:   "deck_empty_payload",
	ErrSubscriptionFailed: "subscription_failed",

	ErrMediaNotFound:        "media_not_found",
	ErrMediaSizeTooLarge:    "media_size_too_large",
	ErrMediaTypeNotAllowed:  "media_type_not_allowed",
	ErrMediaHashMismatch:    "media_hash_mismatch",
	ErrMediaBatchNotFound:   "media_batch_not_found",
	ErrMediaBatchTooLarge:   "media_batch_too_large",
	ErrMediaUploadFailed:    "media_upload_failed",
	ErrMediaConfirmFailed:   "media_confirm_failed",
	ErrMediaStillReferenced: "media_still_referenced",
	ErrMediaBatchClosed:     "media_batch_closed",

	ErrSuggestionNotFound:     "suggestion_not_found",
	ErrSuggestionClosed:       "suggestion_closed",
	ErrSuggestionInvalid:      "suggestion_invalid",
	ErrSuggestionSubmitFailed: "suggestion_submit_failed",

	ErrInvalidCredentials: "invalid_credentials",
	ErrTokenInvalid:       "token_invalid",
	ErrTokenExpired:       "token_expired",
	ErrNotMaintainer:      "not_maintainer",
	ErrUserAlreadyExists:  "user_already_exists",

	ErrStorageConfigNotFound:       "storage_config_not_found",
	ErrStorageConfigInvalid:        "storage_config_invalid",
	ErrStorageConnectionFailed:     "storage_connection_failed",
	ErrStorageUploadFailed:         "storage_upload_failed",
	ErrStorageDownloadFailed:       "storage_download_failed",
	ErrStorageDeleteFailed:         "storage_delete_failed",
	ErrStorageProviderNotSupported: "storage_provider_not_supported",
	ErrStoragePresignNotSupported:  "storage_presign_not_supported",

	ErrDatabaseConnection:  "database_connection",
	ErrDatabaseQuery:       "database_query",
	ErrDatabaseInsert:      "database_insert",
	ErrDatabaseUpdate:      "database_update",
	ErrDatabaseDelete:      "database_delete",
	ErrDatabaseTransaction: "database_transaction",
	ErrRecordNotFound:      "record_not_found",
	ErrRecordAlreadyExists: "record_already_exists",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
// 参数:
//   - code: 错误码
//   - lang: 语言代码，如zh-CN、en-US
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	// 获取错误码对应的i18n键
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}

	// 使用i18n获取翻译
	return i18n.GetInstance().Translate(key, lang)
}
