package response

import (
	"encoding/json"
	"log"
	"net/http"
)

// Response 统一响应结构。
// data 与 error 互斥：成功只有 data，失败只有 error，不存在中间形态。
type Response struct {
	Data  interface{} `json:"data,omitempty" swaggertype:"object"` // 成功时的响应数据
	Error string      `json:"error,omitempty" example:""`          // 失败时的错误消息
}

// Success 成功响应
func Success(data interface{}) *Response {
	return &Response{Data: data}
}

// Error 错误响应。
// 注意：store 层原始错误文本不要直接往外抛（见 handler 层的 500 分支）。
func Error(msg string) *Response {
	return &Response{Error: msg}
}

// WriteJSON 写入 JSON 响应（默认 HTTP 200）
func (r *Response) WriteJSON(w http.ResponseWriter) {
	r.WriteJSONWithStatus(w, http.StatusOK)
}

// WriteJSONWithStatus 写入 JSON 响应（指定 HTTP 状态码）
// 用于中间件层面的鉴权失败/限流等场景（如 401/429）
func (r *Response) WriteJSONWithStatus(w http.ResponseWriter, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(r); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
