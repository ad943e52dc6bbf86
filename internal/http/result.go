package httpapi

// Result 统一响应结构
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultConfigurationError 闹钟/会话参数不合法，调用方需修改后重试
	ResultConfigurationError = 4000
	// ResultSchedulingFailure 部分触发被通知分发器拒绝
	ResultSchedulingFailure = 5030
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func FailWith[T any](code int, message string, result T) Result[T] {
	return Result[T]{Code: code, Type: "error", Message: message, Result: result}
}
