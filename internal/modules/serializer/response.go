package serializer

// Response is the uniform JSON envelope of the API.
type Response struct {
	Code  int    `json:"code"`
	Data  any    `json:"data,omitempty"`
	Msg   string `json:"msg,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	CodeParamErr     = 40001
	CodeUnauthorized = 40100
	CodeNotFound     = 40400
	CodeDBErr        = 50001
	CodeStorageErr   = 50002
)

// Err builds a standard error response.
func Err(code int, msg string, err error) Response {
	res := Response{
		Code: code,
		Msg:  msg,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// ParamErr reports invalid client input.
func ParamErr(msg string, err error) Response {
	if msg == "" {
		msg = "invalid parameters"
	}
	return Err(CodeParamErr, msg, err)
}

// DBErr reports a metadata index failure.
func DBErr(msg string, err error) Response {
	if msg == "" {
		msg = "database error"
	}
	return Err(CodeDBErr, msg, err)
}

// StorageErr reports an artifact store failure.
func StorageErr(msg string, err error) Response {
	if msg == "" {
		msg = "storage error"
	}
	return Err(CodeStorageErr, msg, err)
}

// NotFoundErr reports a missing record or missing backing file.
func NotFoundErr(msg string, err error) Response {
	if msg == "" {
		msg = "not found"
	}
	return Err(CodeNotFound, msg, err)
}
