// README: Common money value object used across modules.
package types

// Money is an amount in minor currency units (cents for USD).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func USD(cents int64) Money {
	return Money{Amount: cents, Currency: "USD"}
}
