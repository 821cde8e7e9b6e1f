package domain

type Capability int

const (
	FetchOrderBook Capability = iota
	WatchOrderBook
	FetchTicker
	FetchBalance
	LoadMarkets
	CreateOrder
)

func (e Capability) String() string {
	return []string{"fetchOrderBook", "watchOrderBook", "fetchTicker", "fetchBalance", "loadMarkets", "createOrder"}[e]
}
