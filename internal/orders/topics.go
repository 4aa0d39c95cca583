package orders

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status_changed"
	TopicProductChanged     = "product.changed"
	TopicReviewChanged      = "review.changed"
)

// Partition key = order, product or review id, so all events of one entity stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }
