package enums

// PaymentRail distinguishes the card-intent path from the bank-transfer path.
type PaymentRail string

const (
	PaymentRailCard PaymentRail = "card"
	PaymentRailBank PaymentRail = "bank_transfer"
)

// String implements fmt.Stringer.
func (r PaymentRail) String() string {
	return string(r)
}
