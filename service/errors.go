package service

import "errors"

// 业务错误哨兵。handler 层用 errors.Is 分流到 HTTP 状态码：
// - ErrValidation            -> 400
// - ErrForbidden             -> 403
// - ErrNotFound              -> 404（“不存在”和“存在但你看不到”统一 404，避免泄露存在性）
// - ErrNoRecipients          -> 400（私信收件人为空是校验失败，不是发送失败）
// - ErrTargetingUnavailable  -> 500（targeting 查询失败必须可区分，不能静默当未授权处理）
var (
	ErrValidation           = errors.New("validation failed")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not found")
	ErrNoRecipients         = errors.New("no recipients")
	ErrTargetingUnavailable = errors.New("targeting unavailable")
)

// validationError 带上下文的参数错误，仍可被 errors.Is(err, ErrValidation) 命中
func validationError(msg string) error {
	return &wrappedError{msg: msg, sentinel: ErrValidation}
}

type wrappedError struct {
	msg      string
	sentinel error
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.sentinel }
