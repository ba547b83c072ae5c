package model

// QuoteHeader is the fixed column order of every snapshot.
var QuoteHeader = []string{"isin", "name", "ask", "bid", "currency"}

// Quote is one successfully extracted observation. Ask is already normalized.
type Quote struct {
	ISIN     string `json:"isin"`
	Name     string `json:"name"`
	Ask      string `json:"ask"`
	Bid      string `json:"bid"`
	Currency string `json:"currency"`
}

// Record returns the quote's fields in QuoteHeader order.
func (q Quote) Record() []string {
	return []string{q.ISIN, q.Name, q.Ask, q.Bid, q.Currency}
}
