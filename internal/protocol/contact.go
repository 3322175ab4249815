package protocol

// ContactRequest 联系表单，支持表单和 JSON 两种提交方式
type ContactRequest struct {
	Name    string `json:"name" form:"name" validate:"max=100"`
	Email   string `json:"email" form:"email" validate:"omitempty,email"`
	Message string `json:"message" form:"message" validate:"required,max=5000"`
}

// MessageResponse 通用的 status + message 响应
type MessageResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"` // 字段 -> 校验错误
}

const (
	ContactAccepted       = "THANK YOU FOR YOUR MESSAGE! WE WILL GET BACK TO YOU SOON."
	ContactFailed         = "FAILED TO SEND MESSAGE. PLEASE TRY AGAIN."
	ContactInvalid        = "INVALID FORM DATA"
	ContactThrottled      = "TOO MANY MESSAGES. PLEASE WAIT BEFORE SENDING AGAIN."
	TelegramTestSent      = "Test message sent to Telegram"
	TelegramNotConfigured = "Telegram credentials not configured"
)
