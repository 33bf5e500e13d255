package errors

// 공통 에러 코드 정의
const (
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"
	ErrUnavailable     = "UNAVAILABLE"
	ErrNotImplemented  = "NOT_IMPLEMENTED"
)

// CodePair는 프레임워크 간 코드 매핑을 위한 구조체입니다
type CodePair struct {
	HTTPStatus int
	GRPCCode   int
}

var codeMapping = map[string]CodePair{
	ErrInternal:        {500, 13},
	ErrNotFound:        {404, 5},
	ErrInvalidArgument: {400, 3},
	ErrUnauthenticated: {401, 16},
	ErrUnauthorized:    {403, 7},
	ErrConflict:        {409, 6},
	ErrTimeout:         {504, 4},
	ErrUnavailable:     {503, 14},
	ErrNotImplemented:  {501, 12},
}

// GetCodeMapping은 에러 코드에 대한 HTTP 상태와 gRPC 코드를 반환합니다.
// 알 수 없는 코드는 Internal로 취급합니다.
func GetCodeMapping(code string) (int, int) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, 13
}
