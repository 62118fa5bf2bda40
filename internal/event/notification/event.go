package notification

// 邮件和短信各自一个主题
const (
	emailEventName = "email_notifications_events"
	smsEventName   = "sms_notifications_events"
)

// EmailNotificationEvent 投递给邮件网关消费者的载荷
type EmailNotificationEvent struct {
	NotificationID string `json:"notificationId"`
	OrderID        string `json:"orderId"`
	ToAddress      string `json:"toAddress"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	ContentType    string `json:"contentType"`
}

// SmsNotificationEvent 投递给短信网关消费者的载荷
type SmsNotificationEvent struct {
	NotificationID string `json:"notificationId"`
	OrderID        string `json:"orderId"`
	Sender         string `json:"sender"`
	MobileNumber   string `json:"mobileNumber"`
	Body           string `json:"body"`
	SegmentCount   int    `json:"segmentCount"`
}
