package domain

type Side int

const (
	Buy Side = iota
	Sell
)

func (e Side) String() string {
	return []string{"buy", "sell"}[e]
}

type OrderType int

const (
	LimitOrder OrderType = iota
	MarketOrder
)

func (e OrderType) String() string {
	return []string{"limit", "market"}[e]
}

type OrderStatus int

const (
	Open OrderStatus = iota
	Closed
	Canceled
)

func (e OrderStatus) String() string {
	return []string{"open", "closed", "canceled"}[e]
}
