package event

// Event is implemented by payloads that carry a type tag. The bus uses it to
// label metrics and to serve SubscribeTypes.
type Event interface {
	Type() string
}
