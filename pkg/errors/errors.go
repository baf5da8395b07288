// Package errors 定义跨层共享的业务错误分类。
// Service 层的具体错误通过 %w 包装其中之一，Handler 据此映射 HTTP 状态码。
package errors

import "errors"

var (
	// ErrNotFound 资源不存在（邀请码 / 比赛 / 作品 / 参赛者）
	ErrNotFound = errors.New("资源不存在")
	// ErrConflict 唯一约束冲突或并发状态变更失败
	ErrConflict = errors.New("资源冲突")
	// ErrUnauthorized 会话或教师身份不匹配
	ErrUnauthorized = errors.New("无权执行该操作")
	// ErrPreconditionFailed 比赛阶段或类型不满足前置条件
	ErrPreconditionFailed = errors.New("前置条件不满足")
	// ErrInvalidTransition 非法的比赛状态跳转
	ErrInvalidTransition = errors.New("无效的状态跳转")
)

// ErrOptimisticLock 条件更新未命中：记录已被其他操作修改
var ErrOptimisticLock = Wrap(ErrConflict, "数据已被其他操作修改，请刷新后重试")

// Wrap 创建一个归属于 kind 分类的具体错误
func Wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }
