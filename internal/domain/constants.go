package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

const (
	PaymentMethodMpesa = "mpesa"
	PaymentMethodVisa  = "visa"
)

const (
	SaleStatusPending   = "pending"
	SaleStatusCompleted = "completed"
	SaleStatusFailed    = "failed"
)

// M-Pesa STK attempt states. Everything except pending is terminal.
const (
	MpesaStatusPending   = "pending"
	MpesaStatusCompleted = "completed"
	MpesaStatusFailed    = "failed"
	MpesaStatusTimeout   = "timeout"
)

const (
	NotificationPurchaseConfirmed = "PURCHASE_CONFIRMED"
)

const (
	AuditLogin          = "LOGIN"
	AuditAdminLogin     = "ADMIN_LOGIN"
	AuditSaleRecorded   = "SALE_RECORDED"
	AuditMpesaInitiated = "MPESA_INITIATED"
	AuditMpesaCallback  = "MPESA_CALLBACK"
	AuditPaperCreated   = "PAPER_CREATED"
	AuditPaperDeleted   = "PAPER_DELETED"
)

func ValidPaymentMethod(m string) bool {
	return m == PaymentMethodMpesa || m == PaymentMethodVisa
}
