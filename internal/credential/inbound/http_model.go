package inbound

type DeviceKeyResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

type VerifyRequest struct {
	Code string `json:"code"`
}

type VerifyResponse struct{}

func (VerifyResponse) Message() string {
	return "Device verified."
}

type LoginRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type LoginResponse struct{}

func (LoginResponse) Message() string {
	return "Login successful."
}
