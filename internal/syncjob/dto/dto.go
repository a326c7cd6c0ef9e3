package dto

type TriggerSyncInput struct {
	ShopifyStoreID    int64
	Type              string
	Direction         string
	TriggeredBy       string
	TriggeredByUserID *int64
	IdempotencyKey    string
	Options           map[string]interface{}
}

type JobFilters struct {
	ShopifyStoreID int64
	Type           string
	Status         string
	Page           int
	PageSize       int
}
