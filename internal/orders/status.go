package orders

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusPacked    Status = "packed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
)

var rank = map[Status]int{
	StatusPlaced:    0,
	StatusPacked:    1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// CanTransition allows moving forward only; skipping a step is fine, going back or staying is not.
func CanTransition(from, to Status) bool {
	f, ok1 := rank[from]
	t, ok2 := rank[to]
	return ok1 && ok2 && t > f
}
