package http

import "net/http"

// 业务错误码：前三位与 HTTP 状态码一致
const (
	CodeBadRequest = 40001 // 请求参数错误
	CodeNotFound   = 40401 // 资源不存在
	CodeBusy       = 40901 // 请求被更新的请求替代 / 资源忙
	CodeInternal   = 50001 // 服务器内部错误
	CodeStorage    = 50002 // 存储失败
)

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（非0表示错误）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// SuccessResponse 成功响应（所有API共用）
type SuccessResponse struct {
	Code    int         `json:"code"`           // 状态码（0表示成功）
	Message string      `json:"message"`        // 响应消息
	Data    interface{} `json:"data,omitempty"` // 响应数据（可选）
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(message string, data interface{}) *SuccessResponse {
	return &SuccessResponse{
		Code:    0,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}

// StatusOf 业务错误码对应的 HTTP 状态码
func StatusOf(code int) int {
	status := code / 100
	if http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}
