package types

// SuccessEnvelope is the body of every 2xx JSON response.
type SuccessEnvelope struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorEnvelope is the body of every failed response. Error and Stack are
// only populated outside production.
type ErrorEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
	Error   any    `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
}
